package metrics

// Config carries service identity labels attached to emitted metrics.
type Config struct {
	ServiceName string
	Environment string
}
