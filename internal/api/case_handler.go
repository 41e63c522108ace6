package api

import (
	"net/http"

	"github.com/google/uuid"
)

// GetCase возвращает case с извлечёнными entities.
// GET /api/v1/cases/{id}
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid case id")
		return
	}

	c, err := h.cases.GetCaseWithEntities(r.Context(), ActorFrom(r.Context()), id)
	if HandleRepoError(w, h.requestLogger(r), err, "case not found") {
		return
	}

	Success(w, c)
}
