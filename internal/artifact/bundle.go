package artifact

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"snowdensity/internal/booster"
)

// BundleFormatVersion is the only bundle layout this build understands.
const BundleFormatVersion = 1

// OutputUnitKgM3 is the density unit a bundle must predict in.
const OutputUnitKgM3 = "kg/m3"

// maxBundleBytes bounds the decompressed size of a bundle.
const maxBundleBytes = 512 << 20

// Bundle is the decoded learned-model artifact: a tree ensemble plus the
// metadata needed to build its input vector.
type Bundle struct {
	FormatVersion int    `json:"format_version"`
	ModelVersion  string `json:"model_version"`
	OutputUnit    string `json:"output_unit"`
	// Features is the order of the model's input vector.
	Features []string `json:"features"`
	// FeatureUnits gives the unit each numeric feature was trained in.
	FeatureUnits map[string]string `json:"feature_units"`
	// DOYOriginMonth is the first month of the water year used for the
	// day-of-year feature.
	DOYOriginMonth int                  `json:"doy_origin_month"`
	Preprocessor   booster.Preprocessor `json:"preprocessor"`
	Booster        json.RawMessage      `json:"booster"`

	ensemble *booster.Ensemble
}

// Ensemble returns the parsed trees. It is nil until the bundle is decoded.
func (b *Bundle) Ensemble() *booster.Ensemble { return b.ensemble }

// DecodeBundle reads a zstd-compressed bundle and checks that it is internally
// consistent.
func DecodeBundle(r io.Reader) (*Bundle, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(maxBundleBytes))
	if err != nil {
		return nil, fmt.Errorf("open zstd stream: %w", err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(io.LimitReader(dec, maxBundleBytes+1))
	if err != nil {
		return nil, fmt.Errorf("decompress bundle: %w", err)
	}
	if len(raw) > maxBundleBytes {
		return nil, fmt.Errorf("bundle exceeds %d bytes", maxBundleBytes)
	}

	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if err := b.check(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (b *Bundle) check() error {
	if b.FormatVersion != BundleFormatVersion {
		return fmt.Errorf("bundle format_version %d, want %d", b.FormatVersion, BundleFormatVersion)
	}
	if b.OutputUnit != OutputUnitKgM3 {
		return fmt.Errorf("bundle output_unit %q, want %q", b.OutputUnit, OutputUnitKgM3)
	}
	if b.DOYOriginMonth < 1 || b.DOYOriginMonth > 12 {
		return fmt.Errorf("bundle doy_origin_month %d out of range", b.DOYOriginMonth)
	}
	if len(b.Features) == 0 {
		return fmt.Errorf("bundle lists no features")
	}
	seen := make(map[string]bool, len(b.Features))
	for _, f := range b.Features {
		if seen[f] {
			return fmt.Errorf("bundle lists feature %q twice", f)
		}
		seen[f] = true
	}
	if err := b.Preprocessor.Validate(b.Features); err != nil {
		return fmt.Errorf("bundle preprocessor: %w", err)
	}
	ens, err := booster.Parse(b.Booster)
	if err != nil {
		return err
	}
	if ens.NumFeature != len(b.Features) {
		return fmt.Errorf("booster expects %d features, bundle lists %d", ens.NumFeature, len(b.Features))
	}
	b.ensemble = ens
	return nil
}

// EncodeBundle writes b in the form DecodeBundle reads.
func EncodeBundle(w io.Writer, b *Bundle) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return err
	}
	if err := json.NewEncoder(enc).Encode(b); err != nil {
		enc.Close()
		return fmt.Errorf("encode bundle: %w", err)
	}
	return enc.Close()
}
