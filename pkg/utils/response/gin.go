package response

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docuverse/pkg/errors"
	"github.com/kart-io/docuverse/pkg/validator"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// WriteResponse writes the unified response to the client.
// A non-nil err is converted with errors.FromError; anything that is not an
// Errno becomes ErrInternal so internal details never reach the client.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	var resp *Response
	switch r, ok := data.(*Response); {
	case err != nil:
		resp = Err(errors.FromError(err), validator.NormalizeLang(c.GetHeader("Accept-Language")))
	case ok:
		resp = r
	default:
		resp = Success(data)
	}

	resp.RequestID = c.GetString(RequestIDKey)
	resp.Timestamp = time.Now().UnixMilli()
	c.JSON(resp.HTTPStatus(), resp)
}

// Abort writes an error response and stops the handler chain.
func Abort(c *gin.Context, err error) {
	WriteResponse(c, err, nil)
	c.Abort()
}
