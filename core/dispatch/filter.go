package dispatch

import "github.com/savelife/rescue/core/model"

// EligibilityFilter selects the devices allowed to receive a notification.
// It runs before the geo query so a responding driver is never re-notified
// even when still inside the radius.
type EligibilityFilter interface {
	Select(devices []model.Device, originator string, role model.Role) []model.Device
}

// RoleFilter implements the standard eligibility rules: match the required
// role (model.RoleAny matches every role), exclude the originator, and for
// drivers exclude anyone already responding.
type RoleFilter struct{}

func (RoleFilter) Select(devices []model.Device, originator string, role model.Role) []model.Device {
	var res []model.Device
	for _, d := range devices {
		if d.Token == originator {
			continue
		}
		if role != model.RoleAny && d.Role != role {
			continue
		}
		if role == model.RoleDriver && d.State == model.StateResponding {
			continue
		}
		res = append(res, d)
	}
	return res
}
