package core

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"payhook/internal/types"
)

// Messages shared by the ingress and consumer result paths.
const (
	MsgInternalServerError = "Internal Server Error"
	MsgProcessingFailed    = "Processing failed"
)

// Envelope is the uniform body for every pipeline result: {code, message}
// for rejections and {code, message, data} for success, where data is
// always present and may be null.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type successEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// MarshalJSON keeps "data" on success envelopes even when it is nil.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Code >= 200 && e.Code < 300 {
		return json.Marshal(successEnvelope(e))
	}
	type plain Envelope
	return json.Marshal(plain{Code: e.Code, Message: e.Message})
}

// Result is a status code paired with its envelope.
type Result struct {
	StatusCode int
	Body       Envelope
}

func newResult(status int, message string, data any) Result {
	return Result{StatusCode: status, Body: Envelope{Code: status, Message: message, Data: data}}
}

// BadRequest builds a 400 result.
func BadRequest(message string) Result {
	return newResult(http.StatusBadRequest, message, nil)
}

// Unauthorized builds a 401 result.
func Unauthorized(message string) Result {
	return newResult(http.StatusUnauthorized, message, nil)
}

// ServerError builds a 500 result.
func ServerError(message string) Result {
	return newResult(http.StatusInternalServerError, message, nil)
}

// Success builds a 200 result carrying data, which may be nil.
func Success(message string, data any) Result {
	return newResult(http.StatusOK, message, data)
}

// FromError renders err as a result. AppErrors keep their message and map
// their code to a status; anything else becomes a generic 500 so internal
// details never reach the caller.
func FromError(err error) Result {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return ServerError(MsgInternalServerError)
	}
	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		return ServerError(MsgInternalServerError)
	}
	return newResult(status, appErr.Message, nil)
}

// OK reports whether the result is a 2xx.
func (res Result) OK() bool {
	return res.StatusCode >= 200 && res.StatusCode < 300
}

// Write sends the result over net/http.
func (res Result) Write(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, res.StatusCode, res.Body)
}

// APIGateway converts the result into an API Gateway proxy response.
func (res Result) APIGateway() events.APIGatewayProxyResponse {
	body, err := json.Marshal(res.Body)
	if err != nil {
		res = ServerError(MsgInternalServerError)
		body, _ = json.Marshal(res.Body)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: res.StatusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

// JSON writes data as a JSON response. If marshalling fails it falls back to
// a 500 envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ServerError(MsgInternalServerError).Body)
	}

	w.Header().Set("Content-Type", "application/json")
	if id := types.GetRequestID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err using FromError.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	FromError(err).Write(w, r)
}
