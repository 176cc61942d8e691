package domain

import (
	"errors"
	"strings"

	"go.trai.ch/zerr"
)

// ErrorKind is the closed set of failure classes the engine reports.
type ErrorKind string

const (
	// KindConfigError is a missing or corrupt lockfile or desired-state descriptor. Never auto-repaired.
	KindConfigError ErrorKind = "ConfigError"
	// KindUnsupportedArtifactKind is a lockfile entry this engine version cannot interpret.
	KindUnsupportedArtifactKind ErrorKind = "UnsupportedArtifactKind"
	// KindDownloadIntegrityFailure is a download that kept failing verification after the retry bound.
	KindDownloadIntegrityFailure ErrorKind = "DownloadIntegrityFailure"
	// KindPromotionFailure is a staged file that could not be moved into the live tree.
	KindPromotionFailure ErrorKind = "PromotionFailure"
	// KindNoRecoveryPathAvailable means neither resume nor rollback can restore the instance.
	KindNoRecoveryPathAvailable ErrorKind = "NoRecoveryPathAvailable"
	// KindInstanceLocked means another invocation holds the instance lock.
	KindInstanceLocked ErrorKind = "InstanceLocked"
	// KindTransient is a network failure that outlived the backoff budget.
	KindTransient ErrorKind = "TransientFailure"
)

// Error is a classified engine failure carrying a human-actionable remediation.
type Error struct {
	Kind        ErrorKind
	Artifact    string
	Message     string
	Remediation string
	Err         error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Artifact != "" {
		b.WriteString(" (artifact ")
		b.WriteString(e.Artifact)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Artifact == "" || t.Artifact == e.Artifact)
}

// NewError builds a classified error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// WithArtifact names the artifact the error concerns.
func (e *Error) WithArtifact(name string) *Error {
	e.Artifact = name
	return e
}

// WithRemediation attaches the action the user should take.
func (e *Error) WithRemediation(remediation string) *Error {
	e.Remediation = remediation
	return e
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// RemediationOf returns the remediation of the outermost classified error, if any.
func RemediationOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Remediation
	}
	return ""
}

const (
	// RemediationRegenerateLock tells the user how to recover from a corrupt lockfile.
	RemediationRegenerateLock = "delete the lockfile (pack/lock) and rerun to regenerate, or run 'hearth lock regenerate --reason ...'"
	// RemediationFixManifest tells the user how to recover from a bad desired-state descriptor.
	RemediationFixManifest = "fix the desired-state descriptor (pack/manifest) supplied by the instance manager"
	// RemediationUnsupportedKind tells the user how to recover from an unknown artifact kind.
	RemediationUnsupportedKind = "regenerate the lockfile with this hearth version or upgrade hearth"
	// RemediationIntegrity tells the user how to recover from repeated checksum mismatches.
	RemediationIntegrity = "check network mirrors and rerun install; staged bytes were discarded"
	// RemediationPromotion tells the user how to recover from a failed promotion.
	RemediationPromotion = "free disk space or fix permissions under the instance root and rerun install; staged files were kept"
	// RemediationNoRecovery tells the user there is nothing left to restore from.
	RemediationNoRecovery = "no valid snapshot exists; fix the reported cause and rerun install"
	// RemediationLocked tells the user another invocation is running.
	RemediationLocked = "wait for the other hearth process to finish, or remove the lock file if that process is gone"
	// RemediationTransient tells the user the network failed repeatedly.
	RemediationTransient = "check connectivity and rerun install; completed artifacts are kept"
)

var (
	// ErrInvalidInstanceRoot is returned when the instance root cannot be resolved.
	ErrInvalidInstanceRoot = zerr.New("invalid instance root")

	// ErrPathEscapesRoot is returned when a relative path would resolve outside its root.
	ErrPathEscapesRoot = zerr.New("path escapes the controlled root")

	// ErrUnknownHashAlgorithm is returned for a checksum algorithm the verifier does not implement.
	ErrUnknownHashAlgorithm = zerr.New("unknown checksum algorithm")

	// ErrMalformedChecksum is returned when a checksum value is not a valid hex digest.
	ErrMalformedChecksum = zerr.New("malformed checksum value")

	// ErrLockfileReadFailed is returned when the lockfile cannot be read.
	ErrLockfileReadFailed = zerr.New("failed to read lockfile")

	// ErrLockfileParseFailed is returned when the lockfile is not valid JSON.
	ErrLockfileParseFailed = zerr.New("failed to parse lockfile")

	// ErrLockfileInvalid is returned when the lockfile breaks a structural invariant.
	ErrLockfileInvalid = zerr.New("lockfile is structurally invalid")

	// ErrLockfileMissing is returned when an operation needs a lockfile that does not exist.
	ErrLockfileMissing = zerr.New("lockfile does not exist")

	// ErrLockfileExists is returned when generation is attempted while a lockfile exists.
	ErrLockfileExists = zerr.New("lockfile already exists")

	// ErrLockfileWriteFailed is returned when the lockfile cannot be persisted.
	ErrLockfileWriteFailed = zerr.New("failed to write lockfile")

	// ErrManifestReadFailed is returned when the desired-state descriptor cannot be read.
	ErrManifestReadFailed = zerr.New("failed to read desired-state descriptor")

	// ErrManifestParseFailed is returned when the desired-state descriptor cannot be parsed.
	ErrManifestParseFailed = zerr.New("failed to parse desired-state descriptor")

	// ErrManifestInvalid is returned when the desired-state descriptor fails validation.
	ErrManifestInvalid = zerr.New("desired-state descriptor is invalid")

	// ErrConfigReadFailed is returned when the engine config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the engine config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigInvalid is returned when the engine configuration fails validation.
	ErrConfigInvalid = zerr.New("engine configuration is invalid")

	// ErrUpstreamRequestFailed is returned when an upstream metadata request fails.
	ErrUpstreamRequestFailed = zerr.New("upstream metadata request failed")

	// ErrUpstreamParseFailed is returned when upstream metadata cannot be decoded.
	ErrUpstreamParseFailed = zerr.New("failed to parse upstream metadata")

	// ErrUpstreamVersionNotFound is returned when the pinned version is unknown upstream.
	ErrUpstreamVersionNotFound = zerr.New("pinned version not found upstream")

	// ErrUpstreamTooLarge is returned when an upstream metadata document exceeds the size limit.
	ErrUpstreamTooLarge = zerr.New("upstream metadata exceeds the size limit")

	// ErrUpstreamChecksumMismatch is returned when upstream metadata does not match its declared hash.
	ErrUpstreamChecksumMismatch = zerr.New("upstream metadata does not match its declared checksum")

	// ErrDownloadFailed is returned when a download cannot complete.
	ErrDownloadFailed = zerr.New("download failed")

	// ErrDownloadStatus is returned for an HTTP status that is not 200.
	ErrDownloadStatus = zerr.New("unexpected download status")

	// ErrSizeMismatch is returned when a download has a different size than declared.
	ErrSizeMismatch = zerr.New("downloaded size does not match declared size")

	// ErrChecksumMismatch is returned when content does not match its declared checksum.
	ErrChecksumMismatch = zerr.New("checksum mismatch")

	// ErrFileOpenFailed is returned when a file cannot be opened.
	ErrFileOpenFailed = zerr.New("failed to open file")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrAtomicWriteFailed is returned when an atomic write cannot complete.
	ErrAtomicWriteFailed = zerr.New("atomic write failed")

	// ErrStagingFailed is returned when the staging area cannot be prepared.
	ErrStagingFailed = zerr.New("staging area operation failed")

	// ErrQuarantineFailed is returned when a live file cannot be moved into quarantine.
	ErrQuarantineFailed = zerr.New("failed to quarantine artifact")

	// ErrPromotionRenameFailed is returned when the promoting rename fails.
	ErrPromotionRenameFailed = zerr.New("failed to promote staged artifact")

	// ErrSnapshotNotFound is returned when a requested snapshot does not exist.
	ErrSnapshotNotFound = zerr.New("snapshot not found")

	// ErrSnapshotCorrupt is returned when a snapshot's stored bytes no longer match its record.
	ErrSnapshotCorrupt = zerr.New("snapshot is corrupt")

	// ErrSnapshotWriteFailed is returned when a snapshot cannot be recorded.
	ErrSnapshotWriteFailed = zerr.New("failed to write snapshot")

	// ErrRestoreFailed is returned when a snapshot entry cannot be restored into the live tree.
	ErrRestoreFailed = zerr.New("failed to restore artifact from snapshot")

	// ErrInstanceLockHeld is returned when another process holds the instance lock.
	ErrInstanceLockHeld = zerr.New("instance is locked by another process")

	// ErrInstanceLockFailed is returned when the instance lock cannot be created.
	ErrInstanceLockFailed = zerr.New("failed to acquire instance lock")

	// ErrArtifactNotInLockfile is returned when repair names an artifact the lockfile does not declare.
	ErrArtifactNotInLockfile = zerr.New("artifact is not declared in the lockfile")

	// ErrRemoteConsulted is returned when a remote resolver is called after the lockfile became the authority.
	ErrRemoteConsulted = zerr.New("remote metadata consulted while lockfile is authoritative")
)
