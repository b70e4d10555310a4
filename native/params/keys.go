package params

const (
	// ParamsKeyPauses stores the module pause configuration.
	ParamsKeyPauses = "system/pauses"
	// ParamsKeyLendingConfig stores the global lending configuration.
	ParamsKeyLendingConfig = "lending/config"
)
