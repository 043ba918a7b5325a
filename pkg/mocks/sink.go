package mocks

import (
	"image"

	"github.com/user/filterbox/pkg/ports"
)

// DebugSink is a mock implementation of ports.DebugSink.
type DebugSink struct {
	enabled bool

	RunJSON       []byte
	SourceFrames  int
	Masks         int
	VariantFrames int
}

// NewDebugSink creates a mock sink with the given enabled state.
func NewDebugSink(enabled bool) *DebugSink {
	return &DebugSink{enabled: enabled}
}

func (m *DebugSink) Enabled() bool { return m.enabled }

func (m *DebugSink) SaveRunJSON(data []byte) error {
	m.RunJSON = data
	return nil
}

func (m *DebugSink) SaveSourceFrame(index int, img image.Image) error {
	m.SourceFrames++
	return nil
}

func (m *DebugSink) SaveMask(index int, img image.Image) error {
	m.Masks++
	return nil
}

func (m *DebugSink) SaveVariantFrame(filterID string, index int, img image.Image) error {
	m.VariantFrames++
	return nil
}

var _ ports.DebugSink = (*DebugSink)(nil)
