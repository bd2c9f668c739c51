package main

import (
	"net/http"
	"spruce/src/db"
	"spruce/src/middlewares"
	"spruce/src/models"
	"spruce/src/types"
	"time"

	"github.com/gin-gonic/gin"
)

// adminHandlers exposes the metrics derived from the status ledger plus
// the stuck-transaction view operators act on.
func adminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	admin := g.Group("/admin")
	admin.Use(middlewares.RequireRole(models.ROLE_ADMIN))
	admin.
		GET("/metrics/time-in-state", func(ctx *gin.Context) {
			db := db.GetDb()
			var rows []types.TimeInState
			err := db.Raw(`
				SELECT to_status AS status,
				       AVG(EXTRACT(EPOCH FROM next_at - created_at)) AS avg_seconds,
				       COUNT(*) AS samples
				FROM (
					SELECT booking_id, to_status, created_at,
					       LEAD(created_at) OVER (PARTITION BY booking_id ORDER BY created_at) AS next_at
					FROM status_updates
				) spans
				WHERE next_at IS NOT NULL
				GROUP BY to_status
				ORDER BY to_status`).
				Scan(&rows).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": rows})
		}).
		GET("/metrics/cancellation-rate", func(ctx *gin.Context) {
			db := db.GetDb()
			var total, cancelled int64
			if err := db.Model(&models.Booking{}).Count(&total).Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			if err := db.
				Model(&models.Booking{}).
				Where("status = ?", types.BOOKING_CANCELED).
				Count(&cancelled).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			rate := 0.0
			if total > 0 {
				rate = float64(cancelled) / float64(total)
			}
			ctx.JSON(http.StatusOK, gin.H{
				"total":     total,
				"cancelled": cancelled,
				"rate":      rate,
			})
		}).
		GET("/transactions/stuck", func(ctx *gin.Context) {
			db := db.GetDb()
			cutoff := time.Now().Add(-15 * time.Minute)
			var rows []models.Transaction
			if err := db.
				Model(&models.Transaction{}).
				Where("status IN (?)", []types.TransactionStatus{
					types.TRANSACTION_PENDING,
					types.TRANSACTION_PROCESSING,
				}).
				Where("created_at < ?", cutoff).
				Order("created_at asc").
				Find(&rows).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": rows, "count": len(rows)})
		})
	return g
}
