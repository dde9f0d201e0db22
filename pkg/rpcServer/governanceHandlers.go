package rpcServer

import (
	"fmt"
	"net/http"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/service/governanceDataService"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/gin-gonic/gin"
)

type createProposalBody struct {
	VaultId        string                  `json:"vaultId" binding:"required"`
	CreatorId      string                  `json:"creatorId"`
	CreatorAddress string                  `json:"creatorAddress" binding:"required"`
	Title          string                  `json:"title" binding:"required"`
	Description    string                  `json:"description"`
	Type           storage.ProposalType    `json:"type" binding:"required"`
	StartDate      *time.Time              `json:"startDate"`
	VotingPeriod   string                  `json:"votingPeriod" binding:"required"`
	Payload        storage.ProposalPayload `json:"payload"`
}

type castVoteBody struct {
	VoterId      string             `json:"voterId"`
	VoterAddress string             `json:"voterAddress" binding:"required"`
	Choice       storage.VoteChoice `json:"choice" binding:"required"`
}

type buildFeeBody struct {
	PayerAddress string `json:"payerAddress" binding:"required"`
}

type submitFeeBody struct {
	SignedTx string `json:"signedTx" binding:"required"`
}

func (s *RpcServer) bind(c *gin.Context, body any) bool {
	if err := c.ShouldBindJSON(body); err != nil {
		s.respondError(c, fmt.Errorf("%w: %s", governanceDataService.ErrInvalidRequest, err.Error()))
		return false
	}
	return true
}

func (s *RpcServer) CreateProposal(c *gin.Context) {
	body := &createProposalBody{}
	if !s.bind(c, body) {
		return
	}
	period, err := time.ParseDuration(body.VotingPeriod)
	if err != nil {
		s.respondError(c, fmt.Errorf("%w: votingPeriod: %s", governanceDataService.ErrInvalidRequest, err.Error()))
		return
	}
	res, err := s.governance.CreateProposal(c.Request.Context(), &governanceDataService.CreateProposalRequest{
		VaultId:        body.VaultId,
		CreatorId:      body.CreatorId,
		CreatorAddress: body.CreatorAddress,
		Title:          body.Title,
		Description:    body.Description,
		Type:           body.Type,
		StartDate:      body.StartDate,
		VotingPeriod:   period,
		Payload:        body.Payload,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *RpcServer) GetProposalDetail(c *gin.Context) {
	res, err := s.governance.GetProposalDetail(c.Request.Context(), c.Param("proposalId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *RpcServer) CastVote(c *gin.Context) {
	body := &castVoteBody{}
	if !s.bind(c, body) {
		return
	}
	vote, err := s.governance.CastVote(c.Request.Context(), &governanceDataService.CastVoteRequest{
		ProposalId:   c.Param("proposalId"),
		VoterId:      body.VoterId,
		VoterAddress: body.VoterAddress,
		Choice:       body.Choice,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vote)
}

func (s *RpcServer) BuildProposalFee(c *gin.Context) {
	body := &buildFeeBody{}
	if !s.bind(c, body) {
		return
	}
	tx, err := s.governance.BuildProposalFeeTransaction(c.Request.Context(), c.Param("proposalId"), body.PayerAddress)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (s *RpcServer) SubmitProposalFee(c *gin.Context) {
	body := &submitFeeBody{}
	if !s.bind(c, body) {
		return
	}
	p, err := s.governance.SubmitProposalFee(c.Request.Context(), c.Param("proposalId"), body.SignedTx)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *RpcServer) ListVaultProposals(c *gin.Context) {
	proposals, err := s.governance.ListVaultProposals(c.Request.Context(), c.Param("vaultId"), parseStatuses(c.Query("status"))...)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

func (s *RpcServer) GetVotingPower(c *gin.Context) {
	res, err := s.governance.GetVotingPower(c.Request.Context(), c.Param("vaultId"), c.Param("address"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *RpcServer) GetDistributionInfo(c *gin.Context) {
	amount := c.Query("amount")
	if amount == "" {
		s.respondError(c, fmt.Errorf("%w: amount is required", governanceDataService.ErrInvalidRequest))
		return
	}
	res, err := s.governance.GetDistributionInfo(c.Request.Context(), c.Param("vaultId"), amount)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *RpcServer) GetDistributionStatus(c *gin.Context) {
	res, err := s.governance.GetDistributionStatus(c.Request.Context(), c.Param("proposalId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *RpcServer) RetryFailedBatches(c *gin.Context) {
	res, err := s.governance.RetryFailedBatches(c.Request.Context(), c.Param("proposalId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
