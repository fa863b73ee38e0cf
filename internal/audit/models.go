package audit

import "time"

// Action names an auditable domain action.
type Action string

const (
	ActionEnrollmentCreated  Action = "enrollment_created"
	ActionEnrollmentUpdated  Action = "enrollment_updated"
	ActionEnrollmentDeleted  Action = "enrollment_deleted"
	ActionDocumentsAttached  Action = "documents_attached"
	ActionSchoolUnitDeleted  Action = "school_unit_deleted"
	ActionAccountProvisioned Action = "account_provisioned"
	ActionAccountRegistered  Action = "account_registered"
	ActionAccountUpdated     Action = "account_updated"
	ActionAccountDeleted     Action = "account_deleted"
	ActionPermissionGranted  Action = "permission_granted"
	ActionPermissionRevoked  Action = "permission_revoked"
	ActionLoginSucceeded     Action = "login_succeeded"
	ActionAuthFailed         Action = "auth_failed"
	ActionTokenRefreshed     Action = "token_refreshed"
	ActionTokenRevoked       Action = "token_revoked"
)

// Category groups actions for routing and retention.
type Category string

const (
	CategoryCompliance Category = "compliance"
	CategorySecurity   Category = "security"
	CategoryOperations Category = "operations"
)

var actionCategories = map[Action]Category{
	ActionEnrollmentCreated:  CategoryCompliance,
	ActionEnrollmentUpdated:  CategoryCompliance,
	ActionEnrollmentDeleted:  CategoryCompliance,
	ActionDocumentsAttached:  CategoryCompliance,
	ActionAccountProvisioned: CategoryCompliance,
	ActionAccountRegistered:  CategoryCompliance,
	ActionAccountDeleted:     CategoryCompliance,
	ActionAuthFailed:         CategorySecurity,
	ActionTokenRevoked:       CategorySecurity,
	ActionPermissionGranted:  CategorySecurity,
	ActionPermissionRevoked:  CategorySecurity,
	ActionAccountUpdated:     CategorySecurity,
}

// Category returns the category of a; unknown actions are operations.
func (a Action) Category() Category {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. It is
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Category  Category  `json:"category"`
	// AccountID is the account affected, when there is one.
	AccountID int64 `json:"account_id,omitempty"`
	// ActorID is the authenticated caller, when different from AccountID.
	ActorID   int64  `json:"actor_id,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}
