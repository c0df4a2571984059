package roles

import "unicode"

// Table maps a 4-digit class-year token or a categorical key to a Discord
// role display name. Loaded once at startup and read-only afterwards.
type Table map[string]string

// Categorical keys recognized alongside 4-digit year tokens.
const (
	KeyFaculty = "Faculty"
	KeyAlumni  = "Alumni"
	KeyDefault = "Default"
)

// Resolve maps an ION username to a Discord role name. The second return
// value is false when no mapping applies at all; the caller must then skip
// the role-add but still perform the role-remove.
//
// The first four characters of the username are treated as a class-year
// token when they are all digits. Usernames that do not follow the student
// format fall into a best-effort Faculty/Alumni classification. This branch
// is intentionally kept identical to the long-standing behavior; changing
// it is a policy decision, not a cleanup.
func Resolve(username string, table Table) (string, bool) {
	prefix := username
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	yearToken := allDigits(prefix)

	if yearToken {
		if role, ok := table[prefix]; ok {
			return role, true
		}
	}

	var role string
	if !yearToken {
		if alumni, hasAlumni := table[KeyAlumni]; hasAlumni {
			studentFormat := len(username) > 4 && allDigits(username[:4])
			if !studentFormat {
				if faculty, ok := table[KeyFaculty]; ok && hasLetterOutsideDigits(username) {
					role = faculty
				}
				if role == "" {
					role = alumni
				}
			}
		}
	}

	if role == "" {
		def, ok := table[KeyDefault]
		if !ok {
			return "", false
		}
		role = def
	}
	return role, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// hasLetterOutsideDigits reports whether any non-digit character of the
// username is alphabetic.
func hasLetterOutsideDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
