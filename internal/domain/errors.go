package domain

import "errors"

var (
	// ErrAuthPending is returned while the auth collaborator is still resolving
	// the session; distinct from being signed out.
	ErrAuthPending = errors.New("authentication not yet resolved")
	// ErrUnauthenticated blocks all write operations when no user is bound.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrProfileNotFound indicates the bound user has no profile row.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrChallengeNotFound indicates a referenced challenge row is absent.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrDegradedChallenge marks a challenge without a usable correct answer;
	// its scoring path is disabled rather than silently scored incorrect.
	ErrDegradedChallenge = errors.New("challenge has no correct answer")
	// ErrFriendshipNotFound indicates the friendship row is absent or the
	// caller is not authorized to touch it.
	ErrFriendshipNotFound = errors.New("friendship not found")
	// ErrFriendshipExists refuses a duplicate request between the same pair.
	ErrFriendshipExists = errors.New("friendship already exists")
	// ErrInvalidFriendTarget refuses a request aimed at the caller or at no
	// one; distinct from a duplicate pair.
	ErrInvalidFriendTarget = errors.New("invalid friend request target")
	// ErrPostNotFound indicates a referenced feed post is absent.
	ErrPostNotFound = errors.New("feed post not found")
	// ErrAttemptPersistence reports that the attempt row could not be
	// inserted; no other state was changed.
	ErrAttemptPersistence = errors.New("attempt could not be recorded")
	// ErrProfilePersistence reports that the profile update failed after the
	// attempt row was durably inserted; displayed scores may be stale.
	ErrProfilePersistence = errors.New("profile update failed")
)
