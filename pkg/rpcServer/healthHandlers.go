package rpcServer

import (
	"net/http"

	"github.com/gin-gonic/gin"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func (s *RpcServer) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": healthpb.HealthCheckResponse_SERVING.String()})
}

func (s *RpcServer) ReadyHandler(c *gin.Context) {
	if s.ReadyCheck != nil {
		if err := s.ReadyCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}
