// Package mocks provides mock implementations of the ports interfaces for
// testing.
package mocks

import (
	"fmt"
	"sync"

	"github.com/user/filterbox/pkg/ports"
)

// Logger is a mock implementation of ports.Logger that records messages.
type Logger struct {
	mu       sync.Mutex
	Messages []LogMessage
}

// LogMessage records one logged message.
type LogMessage struct {
	Level     ports.LogLevel
	Component string
	Text      string
}

// NewLogger creates a new recording logger.
func NewLogger() *Logger {
	return &Logger{}
}

func (m *Logger) log(level ports.LogLevel, component, msg string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, LogMessage{
		Level:     level,
		Component: component,
		Text:      fmt.Sprintf(msg, args...),
	})
}

func (m *Logger) Debug(msg string, args ...interface{}) { m.log(ports.LevelDebug, "", msg, args...) }
func (m *Logger) Info(msg string, args ...interface{})  { m.log(ports.LevelInfo, "", msg, args...) }
func (m *Logger) Warn(msg string, args ...interface{})  { m.log(ports.LevelWarn, "", msg, args...) }
func (m *Logger) Error(msg string, args ...interface{}) { m.log(ports.LevelError, "", msg, args...) }

func (m *Logger) WithComponent(component string) ports.Logger {
	return &componentLogger{parent: m, component: component}
}

// Count returns the number of messages at the given level.
func (m *Logger) Count(level ports.LogLevel) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.Messages {
		if msg.Level == level {
			n++
		}
	}
	return n
}

type componentLogger struct {
	parent    *Logger
	component string
}

func (c *componentLogger) Debug(msg string, args ...interface{}) {
	c.parent.log(ports.LevelDebug, c.component, msg, args...)
}
func (c *componentLogger) Info(msg string, args ...interface{}) {
	c.parent.log(ports.LevelInfo, c.component, msg, args...)
}
func (c *componentLogger) Warn(msg string, args ...interface{}) {
	c.parent.log(ports.LevelWarn, c.component, msg, args...)
}
func (c *componentLogger) Error(msg string, args ...interface{}) {
	c.parent.log(ports.LevelError, c.component, msg, args...)
}
func (c *componentLogger) WithComponent(component string) ports.Logger {
	return &componentLogger{parent: c.parent, component: component}
}

var _ ports.Logger = (*Logger)(nil)
