package user

// ProvisionRequest is the optional body of first sign-in. When DisplayName
// is empty the X-User-Name hint is used instead.
type ProvisionRequest struct {
	DisplayName string `json:"display_name" validate:"max=120"`
	Email       string `json:"email" validate:"omitempty,email"`
}

type SetRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=customer staff admin"`
}
