package incident

// ActionTemplate is a whitelist entry the security gate checks a proposed
// action against. The gate's matching/permission logic lives in
// pkg/security; this package only owns the shape, since Incident and
// AgentRecommendation both reference an ActionID that must resolve to one
// of these.
type ActionTemplate struct {
	ActionID string `yaml:"action_id" validate:"required"`

	// RequiredPermissions lists the capability strings a caller's
	// credential handle must hold for every entry to pass.
	RequiredPermissions []string `yaml:"required_permissions" validate:"required,min=1"`

	// SandboxTested, when true, makes the security gate require a prior
	// SandboxTestPassed event for the same (incident, action_id) before the
	// action can be executed.
	SandboxTested bool `yaml:"sandbox_tested"`

	// ValidationInvariants are arbitrary predicates over incident state
	// that must all hold (e.g. "affected_services non-empty"); expressed
	// as opaque names here and resolved to Go funcs by pkg/security,
	// since a struct-tag validator cannot express state-dependent checks.
	ValidationInvariants []string `yaml:"validation_invariants"`

	MaxRiskLevel RiskLevel `yaml:"max_risk_level" validate:"required,oneof=LOW MEDIUM HIGH"`
}
