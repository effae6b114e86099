package decor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Conf is the content of config/.decorations.json. Image files are relative
// to the config directory; inline base64 wins over a file.
type Conf struct {
	LogoFile        string   `json:"logo_file"`
	LogoBase64      string   `json:"logo_base64"`
	WatermarkFile   string   `json:"watermark_file"`
	WatermarkBase64 string   `json:"watermark_base64"`
	FooterLines     []string `json:"footer_lines"`
}

// Assets are the decoration resources shared by every page of every
// document. They are read-only after loading.
type Assets struct {
	Logo        []byte // PNG or JPEG, nil to skip
	Watermark   []byte // PNG or JPEG, nil to skip
	FooterLines [2]string
}

func LoadConf(path string) (Conf, error) {
	var c Conf
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err = json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// LoadAssets resolves c against configDir.
func LoadAssets(configDir string, c Conf) (*Assets, error) {
	a := &Assets{}
	var err error
	if a.Logo, err = resolveImage(configDir, c.LogoBase64, c.LogoFile); err != nil {
		return nil, fmt.Errorf("logo: %w", err)
	}
	if a.Watermark, err = resolveImage(configDir, c.WatermarkBase64, c.WatermarkFile); err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}
	copy(a.FooterLines[:], c.FooterLines)
	return a, nil
}

func resolveImage(dir, inline, file string) ([]byte, error) {
	if inline != "" {
		return base64.StdEncoding.DecodeString(inline)
	}
	if file == "" {
		return nil, nil
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(dir, file)
	}
	return os.ReadFile(file)
}
