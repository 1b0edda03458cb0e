/*
Package handler provides HTTP handler functions for creating and entering rooms.
*/
package handler

import (
	"net/http"
	"strings"

	"github.com/higgyo/app-dam/internal/app/backend"
	"github.com/higgyo/app-dam/internal/app/db"
	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/auth/jwt"
	"github.com/higgyo/app-dam/internal/pkg/auth/password"
	"github.com/higgyo/app-dam/internal/pkg/errs"
	"github.com/higgyo/app-dam/internal/pkg/logx"
	"github.com/higgyo/app-dam/internal/pkg/randx"
	"github.com/higgyo/app-dam/internal/pkg/resp"
)

// maxCodeAttempts bounds the retries on a join code collision.
const maxCodeAttempts = 5

func roomInfo(row db.RoomRow) backend.RoomInfo {
	return backend.RoomInfo{
		ID:        row.ID,
		Name:      row.Name,
		Code:      row.Code,
		CreatorID: row.CreatorID,
	}
}

// HandleCreateRoom creates a room with a fresh join code. The caller becomes its first member.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input backend.CreateRoomRequest
		if !bindValid(w, r, &input) {
			return
		}

		name := strings.TrimSpace(input.Name)
		if name == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrNameRequired))
			return
		}
		if _, err := domain.NewPassword(input.Password); err != nil {
			resp.RespondError(w, r, errs.Normalize(err, errs.ErrInvalidPassword))
			return
		}

		hash, err := password.Hash(input.Password)
		if err != nil {
			resp.RespondError(w, r, errs.Wrap(errs.ErrUnknown, err))
			return
		}

		var room db.RoomRow
		created := false
		for attempt := 0; attempt < maxCodeAttempts && !created; attempt++ {
			code, err := randx.RoomCode()
			if err != nil {
				resp.RespondError(w, r, errs.Wrap(errs.ErrUnknown, err))
				return
			}

			room, err = deps.Store.CreateRoom(r.Context(), db.CreateRoomParams{
				Name:         name,
				Code:         code,
				PasswordHash: hash,
				CreatorID:    identity.UserID,
			})
			switch {
			case err == nil:
				created = true
			case db.IsUniqueViolation(err):
				logx.Debug("Room code collision, retrying", "attempt", attempt+1)
			default:
				resp.RespondError(w, r, errs.Wrap(errs.ErrPersistence, err))
				return
			}
		}
		if !created {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomCodeExists))
			return
		}

		if err := deps.Store.AddRoomMember(r.Context(), room.ID, identity.UserID); err != nil {
			resp.RespondError(w, r, errs.Wrap(errs.ErrPersistence, err))
			return
		}

		logx.Info("Room created", "room_id", room.ID, "creator_id", identity.UserID)
		resp.RespondSuccess(w, r, roomInfo(room))
	}
}

// HandleEnterRoom adds the caller to the room behind a join code. Unknown codes and wrong
// passwords fail the same way so codes cannot be discovered.
func HandleEnterRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input backend.EnterRoomRequest
		if !bindValid(w, r, &input) {
			return
		}

		if !randx.IsValidRoomCode(input.Code) {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomAccessDenied))
			return
		}

		room, err := deps.Store.GetRoomByCode(r.Context(), input.Code)
		if err != nil {
			if db.IsNotFound(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrRoomAccessDenied))
				return
			}
			resp.RespondError(w, r, errs.Wrap(errs.ErrPersistence, err))
			return
		}

		ok, err := password.Verify(input.Password, room.PasswordHash)
		if err != nil || !ok {
			logx.Warn("Room entry rejected", "room_id", room.ID, "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomAccessDenied))
			return
		}

		if err := deps.Store.AddRoomMember(r.Context(), room.ID, identity.UserID); err != nil {
			resp.RespondError(w, r, errs.Wrap(errs.ErrPersistence, err))
			return
		}

		resp.RespondSuccess(w, r, roomInfo(room))
	}
}
