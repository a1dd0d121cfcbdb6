package authz

// RoleAdmin is the stored role that opens reviewer decisions.
const RoleAdmin = "admin"

// AllowList holds the Telegram ids configured as administrators.
type AllowList map[int64]struct{}

func NewAllowList(ids []int64) AllowList {
	l := make(AllowList, len(ids))
	for _, id := range ids {
		if id != 0 {
			l[id] = struct{}{}
		}
	}
	return l
}

func (l AllowList) Contains(telegramID int64) bool {
	_, ok := l[telegramID]
	return ok
}

// CanReview is the admin predicate. A blocked account never reviews, even when allow-listed.
func CanReview(allowed bool, hasRole bool, blocked bool) bool {
	if blocked {
		return false
	}
	return allowed || hasRole
}
