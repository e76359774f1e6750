package services

import "snaplink/internal/models"

// Principal is the authenticated caller as reported by the identity collaborator.
type Principal struct {
	ID          uint
	IsActive    bool
	IsSuperuser bool
}

func PrincipalFromUser(u *models.User) Principal {
	return Principal{ID: u.ID, IsActive: u.IsActive, IsSuperuser: u.IsSuperuser}
}

func requireSuperuser(actor Principal) error {
	if !actor.IsSuperuser {
		return ErrPermissionDenied
	}
	return nil
}
