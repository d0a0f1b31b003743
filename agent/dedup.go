package agent

import "strings"

// StreamDedupConfig tunes the duplicate-suppression window. The
// defaults (window 50, minimum length 10) are spec-documented defaults,
// not invariants (spec §9) — exposed here as fields rather than
// hardcoded constants so an embedder can tune them.
type StreamDedupConfig struct {
	Window    int
	MinLength int
}

func DefaultStreamDedupConfig() StreamDedupConfig {
	return StreamDedupConfig{Window: 50, MinLength: 10}
}

// StreamDedup suppresses re-emission of recently-sent chunks during
// streaming output, comparing both exact and normalized forms.
type StreamDedup struct {
	cfg              StreamDedupConfig
	recentChunks     []string
	recentNormalized []string
}

func NewStreamDedup(cfg StreamDedupConfig) *StreamDedup {
	return &StreamDedup{cfg: cfg}
}

func normalize(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	return strings.TrimSpace(strings.Join(fields, " "))
}

// IsDuplicate reports whether text matches a recently-sent chunk.
// Chunks shorter than MinLength are never considered duplicates.
func (d *StreamDedup) IsDuplicate(text string) bool {
	if len(text) < d.cfg.MinLength {
		return false
	}
	for _, c := range d.recentChunks {
		if c == text {
			return true
		}
	}
	norm := normalize(text)
	for _, n := range d.recentNormalized {
		if n == norm {
			return true
		}
	}
	return false
}

// RecordSent records text as sent, evicting the oldest entry (FIFO)
// once the window is full. A no-op for chunks shorter than MinLength.
func (d *StreamDedup) RecordSent(text string) {
	if len(text) < d.cfg.MinLength {
		return
	}
	if len(d.recentChunks) >= d.cfg.Window {
		d.recentChunks = d.recentChunks[1:]
		d.recentNormalized = d.recentNormalized[1:]
	}
	d.recentChunks = append(d.recentChunks, text)
	d.recentNormalized = append(d.recentNormalized, normalize(text))
}

func (d *StreamDedup) Clear() {
	d.recentChunks = nil
	d.recentNormalized = nil
}
