package rpcServer

import (
	"errors"
	"net/http"
	"strings"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/governance"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/service/governanceDataService"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusForError(err error) int {
	var apiErr *clientTypes.ApiError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, governanceDataService.ErrInvalidRequest),
		errors.Is(err, governanceDataService.ErrInvalidChoice):
		return http.StatusBadRequest
	case errors.Is(err, governanceDataService.ErrNotEligible):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrDuplicateVote),
		errors.Is(err, governanceDataService.ErrProposalNotActive),
		errors.Is(err, governanceDataService.ErrFeeNotRequired),
		errors.Is(err, governance.ErrNotRetryable):
		return http.StatusConflict
	case errors.Is(err, governanceDataService.ErrVaultNotGoverned),
		errors.Is(err, governanceDataService.ErrNoSnapshot),
		errors.Is(err, governance.ErrNotDistribution):
		return http.StatusUnprocessableEntity
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *RpcServer) respondError(c *gin.Context, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Sugar().Errorw("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

func parseStatuses(raw string) []storage.ProposalStatus {
	if raw == "" {
		return nil
	}
	statuses := make([]storage.ProposalStatus, 0)
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, storage.ProposalStatus(strings.ToUpper(s)))
		}
	}
	return statuses
}
