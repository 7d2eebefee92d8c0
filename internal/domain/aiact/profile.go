package aiact

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidProfile wraps every profile validation failure.
var ErrInvalidProfile = errors.New("invalid AI system profile")

// AISystemProfile is the user-supplied description of an AI system.
type AISystemProfile struct {
	SystemName           string   `json:"system_name" validate:"required,max=200"`
	Purpose              string   `json:"purpose" validate:"max=2000"`
	UseCase              string   `json:"use_case" validate:"max=2000"`
	DeploymentContext    string   `json:"deployment_context" validate:"max=500"`
	DataTypes            []string `json:"data_types" validate:"max=50,dive,max=200"`
	UserGroups           []string `json:"user_groups" validate:"max=50,dive,max=200"`
	DecisionImpact       string   `json:"decision_impact" validate:"omitempty,max=50"`
	AutomationLevel      string   `json:"automation_level" validate:"omitempty,max=100"`
	HumanOversight       bool     `json:"human_oversight"`
	DataProcessingScope  string   `json:"data_processing_scope" validate:"max=500"`
	GeographicDeployment []string `json:"geographic_deployment" validate:"max=100,dive,max=100"`
	RegulatoryContext    []string `json:"regulatory_context" validate:"max=50,dive,max=200"`
	Domain               string   `json:"domain,omitempty" validate:"max=200"`
	ParameterCount       int64    `json:"parameter_count,omitempty" validate:"gte=0"`
}

var profileValidate = validator.New()

// Validate checks field bounds for profiles arriving over an API boundary.
// Classification itself accepts any profile.
func (p AISystemProfile) Validate() error {
	err := profileValidate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(msgs, "; "))
}
