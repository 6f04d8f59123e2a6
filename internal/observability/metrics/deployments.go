package metrics

import "time"

// Deployment outcome labels
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// DeploymentResult records a finished deployment attempt.
func DeploymentResult(network, status string, duration time.Duration) {
	if !enabled {
		return
	}
	deploymentsTotal.WithLabelValues(network, status).Inc()
	deploymentDuration.WithLabelValues(network).Observe(duration.Seconds())
}

// DeploymentGas records the gas used by a confirmed deployment.
func DeploymentGas(network, contract string, gasUsed uint64) {
	if !enabled {
		return
	}
	deploymentGasUsed.WithLabelValues(network, contract).Set(float64(gasUsed))
}

// Verification records a verification outcome ("full", "partial", "none",
// "explorer" or "error").
func Verification(network, result string) {
	if !enabled {
		return
	}
	verificationsTotal.WithLabelValues(network, result).Inc()
}
