package mocks

import (
	"sync"
)

// MockLogger implements console.Logger and captures everything logged so
// tests can assert on it.
type MockLogger struct {
	mu       sync.Mutex
	Messages []LogMessage
}

type LogMessage struct {
	Level   string
	Message string
	Fields  []interface{}
}

func NewMockLogger() *MockLogger {
	return &MockLogger{
		Messages: make([]LogMessage, 0),
	}
}

func (m *MockLogger) Debug(msg string, fields ...interface{}) {
	m.log("DEBUG", msg, fields...)
}

func (m *MockLogger) Info(msg string, fields ...interface{}) {
	m.log("INFO", msg, fields...)
}

func (m *MockLogger) Warn(msg string, fields ...interface{}) {
	m.log("WARN", msg, fields...)
}

func (m *MockLogger) Error(msg string, fields ...interface{}) {
	m.log("ERROR", msg, fields...)
}

func (m *MockLogger) log(level, msg string, fields ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Messages = append(m.Messages, LogMessage{
		Level:   level,
		Message: msg,
		Fields:  fields,
	})
}

// GetMessages returns a copy of all logged messages.
func (m *MockLogger) GetMessages() []LogMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogMessage{}, m.Messages...)
}

// HasMessage checks if a specific message was logged at a level.
func (m *MockLogger) HasMessage(level, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.Messages {
		if msg.Level == level && msg.Message == message {
			return true
		}
	}
	return false
}
