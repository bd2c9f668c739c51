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

// jobHandlers is the worker-facing feed of open jobs and the claim
// endpoint. Claiming is first-committed-wins; a lost claim is a normal
// outcome, not an error.
func jobHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	jobs := g.Group("/jobs")
	jobs.Use(middlewares.RequireRole(models.ROLE_WORKER, models.ROLE_ADMIN))
	jobs.
		GET("/open", func(ctx *gin.Context) {
			db := db.GetDb()
			var bookings []models.Booking
			if err := db.
				Model(&models.Booking{}).
				Where("worker_id IS NULL").
				Where("status = ?", types.BOOKING_REQUESTED).
				Where("scheduled_at > ?", time.Now()).
				Preload("Address").
				Order("scheduled_at asc").
				Limit(50).
				Find(&bookings).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		}).
		POST("/:id/claim", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			workerId := ctx.GetUint("id")
			claimed, err := engine.ClaimJob(ctx.Request.Context(), params.ID, workerId)
			if err != nil {
				status, h := statusFromFault(err)
				ctx.JSON(status, h)
				return
			}
			if !claimed {
				ctx.JSON(http.StatusConflict, gin.H{
					"claimed": false,
					"message": "this job is no longer available",
				})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"claimed": true})
		})
	return g
}
