package nnue

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// ManifestEntry describes one array in the weight blob.
type ManifestEntry struct {
	Name  string
	Type  string // one of i8,u8,i16,u16,i32,u32,i64,u64,f32,f64
	Count int
}

// typeSize returns the byte width of a manifest element type.
func typeSize(t string) (int, error) {
	switch t {
	case "i8", "u8":
		return 1, nil
	case "i16", "u16":
		return 2, nil
	case "i32", "u32":
		return 4, nil
	case "i64", "u64", "f64":
		return 8, nil
	case "f32":
		return 4, nil
	}
	return 0, fmt.Errorf("nnue: unknown element type %q", t)
}

// networkManifest is the fixed section order of the weight blob. Elements
// are little-endian two's-complement; sections are concatenated in this
// order with no header.
var networkManifest = []ManifestEntry{
	{"ft_weights", "i16", NumFeatures * FTOut},
	{"ft_biases", "i16", FTOut},
	{"psqt_weights", "i16", NumFeatures * PsqtOut},
	{"psqt_biases", "i16", PsqtOut},
	{"l1_weights", "i16", L1Size * 2 * FTOut},
	{"l1_biases", "i32", L1Size},
	{"l2_weights", "i16", L2Size * L1Size},
	{"l2_biases", "i32", L2Size},
	{"out_weights", "i16", L2Size},
	{"out_bias", "i32", 1},
}

// ManifestSize returns the expected blob size for a manifest.
func ManifestSize(manifest []ManifestEntry) (int64, error) {
	var total int64
	for _, e := range manifest {
		sz, err := typeSize(e.Type)
		if err != nil {
			return 0, err
		}
		total += int64(sz) * int64(e.Count)
	}
	return total, nil
}

// LoadNetwork reads a weight blob from disk, verifying the file length
// against the manifest before reading any section. A mismatch is fatal at
// load time and names the offending layer.
func LoadNetwork(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nnue: open weights: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("nnue: stat weights: %w", err)
	}

	want, err := ManifestSize(networkManifest)
	if err != nil {
		return nil, err
	}
	if info.Size() != want {
		// name the first section the blob cannot hold in full; a blob that
		// is too long is reported against the last section
		layer := networkManifest[len(networkManifest)-1].Name
		var end int64
		for _, e := range networkManifest {
			sz, _ := typeSize(e.Type)
			end += int64(sz) * int64(e.Count)
			if end > info.Size() {
				layer = e.Name
				break
			}
		}
		return nil, fmt.Errorf("nnue: weight blob is %d bytes, manifest wants %d (mismatch at %s)", info.Size(), want, layer)
	}

	net := NewNetwork()
	if err := net.readSections(f); err != nil {
		return nil, err
	}
	return net, nil
}

// readSections reads every manifest section in order.
func (net *Network) readSections(r io.Reader) error {
	sections := []struct {
		name string
		dst  any
	}{
		{"ft_weights", net.FTWeights[:]},
		{"ft_biases", net.FTBiases[:]},
		{"psqt_weights", net.PsqtWeights[:]},
		{"psqt_biases", net.PsqtBiases[:]},
		{"l1_weights", net.L1Weights[:]},
		{"l1_biases", net.L1Biases[:]},
		{"l2_weights", net.L2Weights[:]},
		{"l2_biases", net.L2Biases[:]},
		{"out_weights", net.OutWeights[:]},
		{"out_bias", &net.OutBias},
	}

	for _, s := range sections {
		if err := binary.Read(r, binary.LittleEndian, s.dst); err != nil {
			return fmt.Errorf("nnue: reading %s: %w", s.name, err)
		}
	}
	return nil
}

// SaveNetwork writes the blob in manifest order. Used by tooling and tests.
func SaveNetwork(net *Network, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("nnue: create weights: %w", err)
	}
	defer f.Close()

	sections := []struct {
		name string
		src  any
	}{
		{"ft_weights", net.FTWeights[:]},
		{"ft_biases", net.FTBiases[:]},
		{"psqt_weights", net.PsqtWeights[:]},
		{"psqt_biases", net.PsqtBiases[:]},
		{"l1_weights", net.L1Weights[:]},
		{"l1_biases", net.L1Biases[:]},
		{"l2_weights", net.L2Weights[:]},
		{"l2_biases", net.L2Biases[:]},
		{"out_weights", net.OutWeights[:]},
		{"out_bias", net.OutBias},
	}

	for _, s := range sections {
		if err := binary.Write(f, binary.LittleEndian, s.src); err != nil {
			return fmt.Errorf("nnue: writing %s: %w", s.name, err)
		}
	}
	return nil
}
