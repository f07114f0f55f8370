package main

import (
	"flag"
	"os"
	"runtime/pprof"

	"github.com/rs/zerolog"

	"github.com/pauxav06/ChePP/internal/hub"
	"github.com/pauxav06/ChePP/internal/nnue"
	"github.com/pauxav06/ChePP/internal/storage"
	"github.com/pauxav06/ChePP/internal/uci"
)

var (
	threads    = flag.Int("threads", 1, "number of search threads")
	hashMB     = flag.Int("hash", 64, "transposition table size in MB")
	evalFile   = flag.String("nnue", "", "path to the NNUE weight blob")
	watchAddr  = flag.String("watch", "", "listen address for the analysis websocket (empty = disabled)")
	withStore  = flag.Bool("store", false, "persist analysis results to the local database")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	verbose    = flag.Bool("verbose", false, "enable debug logging")
)

func main() {
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !*verbose {
		log = log.Level(zerolog.InfoLevel)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal().Err(err).Msg("creating cpu profile")
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("starting cpu profile")
		}
		defer pprof.StopCPUProfile()
	}

	net, err := loadNetwork(*evalFile, log)
	if err != nil {
		log.Fatal().Err(err).Msg("loading NNUE weights")
	}

	protocol := uci.New(net, *threads, *hashMB, log)

	if *withStore {
		store, err := storage.Open()
		if err != nil {
			log.Fatal().Err(err).Msg("opening analysis store")
		}
		defer store.Close()
		protocol.AttachStorage(store)
	}

	if *watchAddr != "" {
		h := hub.New(log)
		protocol.OnInfo = h.Broadcast
		go func() {
			if err := h.ListenAndServe(*watchAddr); err != nil {
				log.Error().Err(err).Msg("analysis hub stopped")
			}
		}()
	}

	protocol.Run()
}

// loadNetwork loads the weight blob, falling back to a deterministic
// random network so the engine stays usable for development without one.
func loadNetwork(path string, log zerolog.Logger) (*nnue.Network, error) {
	if path == "" {
		log.Warn().Msg("no NNUE file given, using random weights")
		net := nnue.NewNetwork()
		net.InitRandom(0x5EED)
		return net, nil
	}

	net, err := nnue.LoadNetwork(path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", path).Msg("NNUE weights loaded")
	return net, nil
}
