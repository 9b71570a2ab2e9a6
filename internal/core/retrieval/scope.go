package retrieval

// Scope describes which chunk sets a retrieval request may draw from. It is
// resolved once per request and consumed by a single similarity query, so the
// admin and non-admin paths cannot drift apart.
type Scope struct {
	CallerEmail string

	// IncludePersonal is set for every caller: their own active documents.
	IncludePersonal bool

	// IncludeShared enables the shared-document arm of the search.
	// AllDepartments widens it from a single department to every visible
	// shared document (administrative callers). Personal opt-outs recorded
	// in user_shared_doc_prefs are subtracted in both cases.
	IncludeShared   bool
	AllDepartments  bool
	Department      string
}

// ResolveScope derives a caller's retrieval scope from their identity.
//
// Admins see all visible shared documents regardless of department. Regular
// callers see shared documents of their own department only; a caller with
// no department sees none. Everyone sees their own active personal documents.
func ResolveScope(callerEmail string, isAdmin bool, department string) Scope {
	s := Scope{
		CallerEmail:     callerEmail,
		IncludePersonal: true,
	}
	switch {
	case isAdmin:
		s.IncludeShared = true
		s.AllDepartments = true
	case department != "":
		s.IncludeShared = true
		s.Department = department
	}
	return s
}
