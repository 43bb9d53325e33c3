package service

// Server serves a single debug session over a listener.
type Server interface {
	Run()
	Stop()
}
