package domain

// Class categories accepted at registration.
const (
	CategoryPrimary     = "03-05"
	CategoryJunior      = "06-08"
	CategorySecondary   = "09-10"
	CategoryHigher      = "11-12"
	CategorySeniorGroup = "09-12"
	CategoryAll         = "all"
)

// Categories lists the registration categories in display order.
var Categories = []string{CategoryPrimary, CategoryJunior, CategorySecondary, CategoryHigher}

// IsCategory reports whether c is a category a registrant can pick.
func IsCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// IsExportCategory reports whether c is an accepted export filter.
func IsExportCategory(c string) bool {
	return c == CategoryAll || c == CategorySeniorGroup || IsCategory(c)
}

// MatchesCategory reports whether a registrant in category c is included by
// the export filter. "09-12" groups the two senior categories.
func MatchesCategory(filter, c string) bool {
	switch filter {
	case "", CategoryAll:
		return true
	case CategorySeniorGroup:
		return c == CategorySecondary || c == CategoryHigher
	default:
		return filter == c
	}
}
