package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/wikidex/internal/api"
	"github.com/cloo-solutions/wikidex/internal/service"
)

type QAService interface {
	Answer(ctx context.Context, question string) (*service.QAResult, error)
}

type QAHandler struct {
	svc QAService
}

func NewQAHandler(svc QAService) *QAHandler {
	return &QAHandler{svc: svc}
}

type QAResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
}

// Ask answers a question from the indexed wiki content. The question
// comes in the "q" query parameter; the response body is flat JSON.
func (h *QAHandler) Ask(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("q")
	if question == "" {
		api.Error(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	result, err := h.svc.Answer(r.Context(), question)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, QAResponse{
		Question: result.Question,
		Answer:   result.Answer,
		Sources:  result.Sources,
	})
}
