package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicCaller annotates the nrgin transaction with the caller and the
// booking being acted on. It must run after Auth and is a no-op when no
// transaction is attached.
func NewRelicCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if id, ok := CallerIdentity(c); ok {
			txn.AddAttribute("caller.id", id.ID)
			txn.AddAttribute("caller.role", string(id.Role))
		}
		if bookingID := c.Param("id"); bookingID != "" {
			txn.AddAttribute("booking.id", bookingID)
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
