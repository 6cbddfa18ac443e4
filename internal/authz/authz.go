package authz

// Identity is the authenticated caller as seen by authorization checks.
type Identity struct {
	UID         int
	IsSuperuser bool
}

// Ownable is any resource with a single owning user.
type Ownable interface {
	ResourceOwnerID() int
}

// Permission is the outcome of an authorization check.
type Permission struct {
	Read  bool
	Write bool
}

// Check returns the caller's permission on a resource. Owners and
// superusers get full access, everyone else gets none. This is the single
// authorization point; handlers must not re-implement ownership checks.
func Check(id Identity, res Ownable) Permission {
	if id.IsSuperuser || id.UID == res.ResourceOwnerID() {
		return Permission{Read: true, Write: true}
	}
	return Permission{}
}

// CanRead reports whether the caller may read the resource
func CanRead(id Identity, res Ownable) bool {
	return Check(id, res).Read
}

// CanWrite reports whether the caller may mutate the resource
func CanWrite(id Identity, res Ownable) bool {
	return Check(id, res).Write
}
