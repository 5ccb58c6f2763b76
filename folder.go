package filestorage

// PermissionLevel is the level of a single permission bit.
type PermissionLevel int

const (
	// NoPermission grants nothing
	NoPermission PermissionLevel = 0
	// MaxPermission grants everything
	MaxPermission PermissionLevel = 128
)

// Permission is an access control entry of a folder.
type Permission struct {
	Entity string
	Admin  bool
	Folder PermissionLevel
	Read   PermissionLevel
	Write  PermissionLevel
	Delete PermissionLevel
}

// OwnerPermission returns the full-rights permission of entity.
func OwnerPermission(entity string) Permission {
	return Permission{
		Entity: entity,
		Admin:  true,
		Folder: MaxPermission,
		Read:   MaxPermission,
		Write:  MaxPermission,
		Delete: MaxPermission,
	}
}

// Folder is the metadata of a folder.
type Folder struct {
	ID                   string
	ParentID             string
	Name                 string
	Root                 bool
	HasSubfolders        bool
	SubscribedSubfolders bool
	Subscribed           bool
	HoldsFiles           bool
	HoldsFolders         bool
	Permissions          []Permission
	OwnPermission        Permission
}

// QuotaType tells what a Quota measures.
type QuotaType string

const (
	// QuotaStorage is measured in bytes
	QuotaStorage = QuotaType("storage")
	// QuotaFile is measured in number of files
	QuotaFile = QuotaType("file")
)

// Unlimited is the limit of a quota without limit.
const Unlimited int64 = -1

// Quota is a limit plus the current usage of it.
type Quota struct {
	Type  QuotaType
	Limit int64
	Usage int64
}

// UnlimitedQuota returns a quota of typ without limit.
func UnlimitedQuota(typ QuotaType) Quota {
	return Quota{Type: typ, Limit: Unlimited, Usage: Unlimited}
}
