package constant

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCompleted  JobStatus = "completed"
)

// Terminal reports whether the worker will never touch a job in this status again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type AccessType string

const (
	AccessTypeUnassigned AccessType = "unassigned"
	AccessTypeFree       AccessType = "free"
	AccessTypePaid       AccessType = "paid"
)

type CommerceType string

const (
	CommerceTypeFree CommerceType = "free"
	CommerceTypePaid CommerceType = "paid"
)

type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// CanPublish reports whether the role may upload videos and trigger operator actions.
func (r Role) CanPublish() bool {
	return r == RoleInstructor || r == RoleAdmin
}

const (
	PlaylistName      = "index.m3u8"
	SegmentNameFormat = "segment_%03d.ts"
	StatusFileName    = "status.json"

	ContentTypePlaylist = "application/vnd.apple.mpegurl"
	ContentTypeSegment  = "video/mp2t"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
