package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chainshop/internal/referral"
	"chainshop/internal/shopapi"
	"chainshop/internal/tasks"
)

type PaginatedCommissions struct {
	Count    int                   `json:"count"`
	Next     string                `json:"next"`
	Previous string                `json:"previous"`
	Results  []referral.Commission `json:"results"`
}

// GetCommissionFeed is the authenticated, paginated variant of the commission
// history, newest first.
func GetCommissionFeed(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid page"})
		return
	}
	if page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid page"})
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if size < 1 || size > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": errors.New("maximum size is 100").Error()})
		return
	}
	address := c.MustGet("address")
	email := c.MustGet("email")
	var user shopapi.User
	res := app.Db.Where(
		"(address NOT IN ('') AND address = ?) OR (email NOT IN ('') AND email = ?)",
		address,
		email,
	).First(&user)
	if res.RowsAffected != 1 {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "invalid jwt"})
		return
	}
	commissions := shopapi.GetCommissions(app.Db, user.Address)
	paginated := paginateCommissions(commissions, page, size)
	c.JSON(http.StatusOK, gin.H{"success": true, "commissions": paginated})
}

// GetPayoutStatus reports where one of the caller's commissions sits in the
// payout pipeline. Non-terminal rows block on the queue for a short window, so
// the UI can show the settled status without polling.
func GetPayoutStatus(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid commission id"})
		return
	}
	address := c.MustGet("address")
	email := c.MustGet("email")
	var user shopapi.User
	res := app.Db.Where(
		"(address NOT IN ('') AND address = ?) OR (email NOT IN ('') AND email = ?)",
		address,
		email,
	).First(&user)
	if res.RowsAffected != 1 {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "invalid jwt"})
		return
	}
	var commission shopapi.CommissionTx
	res = app.Db.Where(
		"id = ? AND referrer_id = ?",
		id,
		user.Id,
	).First(&commission)
	if res.RowsAffected != 1 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "commission not found"})
		return
	}
	if !referral.CommissionStatus(commission.Status).Terminal() {
		waitCtx, cancel := context.WithTimeout(c, 10*time.Second)
		defer cancel()
		_, err := shopapi.WaitForAsynqTaskResult(waitCtx, app.Aqi, tasks.QueueCommissions, tasks.CommissionTaskId(commission.Id))
		if err == nil {
			app.Db.Where(
				"id = ?",
				commission.Id,
			).First(&commission)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"status":     commission.Status,
		"payoutHash": commission.PayoutHash,
	})
}

func paginateCommissions(commissions []referral.Commission, page int, size int) (paginated PaginatedCommissions) {
	paginated.Results = []referral.Commission{}
	feedLen := len(commissions)
	i := (page - 1) * size
	if feedLen <= i {
		return paginated
	}
	if feedLen > page*size {
		paginated.Next = fmt.Sprintf("/users/commissions/?page=%d&size=%d", page+1, size)
	}
	if page > 1 {
		paginated.Previous = fmt.Sprintf("/users/commissions/?page=%d&size=%d", page-1, size)
	}
	if size > feedLen {
		size = feedLen
	}
	j := i + size
	if j > feedLen {
		j = feedLen
	}
	paginated.Count = feedLen
	paginated.Results = commissions[i:j]
	return paginated
}
