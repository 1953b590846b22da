package core

// Logger is the application-wide logging contract. Implementations live in
// services/logger; args may carry errors or structured context maps.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
