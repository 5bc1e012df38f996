// Package venue holds the static venue knowledge the bot serves: copy
// strings, branches, addresses with opening hours and menu images.
package venue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/poddon/concierge/pkg/logging"
)

// Copy is the configurable bot wording.
type Copy struct {
	Greeting  string `json:"greeting"`
	Unknown   string `json:"unknown"`
	QuizIntro string `json:"quiz_intro"`
}

// DefaultCopy is used for every key the copy file does not set.
func DefaultCopy() Copy {
	return Copy{
		Greeting:  "Привет! Помогу с бронью, меню, адресом и мини-викториной. С чего начнём?",
		Unknown:   "Я на связи. Могу помочь с бронью, меню, адресом и викториной. Что интересно?",
		QuizIntro: "Молниеносная викторина. Готов?",
	}
}

// LoadCopy overlays the JSON object at path on the defaults. A missing or
// malformed file is logged and yields the defaults.
func LoadCopy(path string, logger *logging.Logger) Copy {
	if logger == nil {
		logger = logging.Default()
	}
	c := DefaultCopy()
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c
	}
	if err != nil {
		logger.Warn("venue: read copy file failed, using defaults", "path", path, "error", err)
		return c
	}
	if err := decodeCopy(raw, &c); err != nil {
		logger.Warn("venue: copy file rejected, using defaults", "path", path, "error", err)
		return DefaultCopy()
	}
	return c
}

func decodeCopy(raw []byte, c *Copy) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("copy file is not a JSON object: %w", err)
	}
	fields := map[string]*string{
		"greeting":   &c.Greeting,
		"unknown":    &c.Unknown,
		"quiz_intro": &c.QuizIntro,
	}
	for key, dst := range fields {
		v, ok := obj[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		if s != "" {
			*dst = s
		}
	}
	return nil
}
