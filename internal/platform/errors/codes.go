// Package errors provides structured error handling with localized messages.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Game errors
	CodeGameEmptyID  Code = "GAME_EMPTY_ID"
	CodeGameNotFound Code = "GAME_NOT_FOUND"

	// Role errors
	CodeRoleEmptyID       Code = "ROLE_EMPTY_ID"
	CodeRoleNotFound      Code = "ROLE_NOT_FOUND"
	CodeRoleInvalidSlots  Code = "ROLE_INVALID_SLOT_COUNT"
	CodeRoleTableEmpty    Code = "ROLE_TABLE_EMPTY"
	CodeRoleDuplicateName Code = "ROLE_DUPLICATE_NAME"

	// Hero errors
	CodeHeroEmptyID  Code = "HERO_EMPTY_ID"
	CodeHeroNotFound Code = "HERO_NOT_FOUND"

	// Queue errors
	CodeQueueEmpty        Code = "QUEUE_EMPTY"
	CodeQueueEmptyOwnerID Code = "QUEUE_EMPTY_OWNER_ID"

	// Roster errors
	CodeRosterNotReady        Code = "ROSTER_NOT_READY"
	CodeRosterCapacityExceeds Code = "ROSTER_CAPACITY_EXCEEDED"

	// Stand-in errors
	CodeStandinPoolExhausted Code = "STANDIN_POOL_EXHAUSTED"

	// Session errors
	CodeSessionEmptyID       Code = "SESSION_EMPTY_ID"
	CodeSessionNotFound      Code = "SESSION_NOT_FOUND"
	CodeSessionFinished      Code = "SESSION_FINISHED"
	CodeSessionEmptyGameID   Code = "SESSION_EMPTY_GAME_ID"
	CodeSessionAlreadyExists Code = "SESSION_ALREADY_EXISTS"

	// Battle errors
	CodeBattleEmptyGameID    Code = "BATTLE_EMPTY_GAME_ID"
	CodeBattleEmptyAttacker  Code = "BATTLE_EMPTY_ATTACKER"
	CodeBattleInvalidResult  Code = "BATTLE_INVALID_RESULT"
	CodeParticipantConflict  Code = "PARTICIPANT_UPDATE_CONFLICT"
	CodeParticipantEmptyID   Code = "PARTICIPANT_EMPTY_OWNER_ID"
	CodeParticipantNotFound  Code = "PARTICIPANT_NOT_FOUND"
	CodeTurnLogEmptyPrompt   Code = "TURN_LOG_EMPTY_PROMPT"
	CodeTurnLogEmptyResponse Code = "TURN_LOG_EMPTY_RESPONSE"

	// Transport errors
	CodeTransportEmptyModel    Code = "TRANSPORT_EMPTY_MODEL"
	CodeTransportEmptyMessages Code = "TRANSPORT_EMPTY_MESSAGES"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeGameEmptyID,
		CodeRoleEmptyID,
		CodeRoleInvalidSlots,
		CodeRoleTableEmpty,
		CodeRoleDuplicateName,
		CodeHeroEmptyID,
		CodeQueueEmpty,
		CodeQueueEmptyOwnerID,
		CodeRosterCapacityExceeds,
		CodeSessionEmptyID,
		CodeSessionEmptyGameID,
		CodeBattleEmptyGameID,
		CodeBattleEmptyAttacker,
		CodeBattleInvalidResult,
		CodeParticipantEmptyID,
		CodeTurnLogEmptyPrompt,
		CodeTurnLogEmptyResponse,
		CodeTransportEmptyModel,
		CodeTransportEmptyMessages:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeRosterNotReady,
		CodeSessionFinished:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeGameNotFound,
		CodeRoleNotFound,
		CodeHeroNotFound,
		CodeSessionNotFound,
		CodeParticipantNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeSessionAlreadyExists:
		return codes.AlreadyExists

	// Aborted - optimistic concurrency gave up
	case CodeParticipantConflict:
		return codes.Aborted

	// ResourceExhausted - no eligible candidates remain
	case CodeStandinPoolExhausted:
		return codes.ResourceExhausted

	default:
		return codes.Internal
	}
}
