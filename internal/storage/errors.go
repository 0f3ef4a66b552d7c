package storage

import (
	"errors"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"

	"github.com/fpang/image-handler/internal/apierror"
)

// mapS3Error converts an SDK failure into an apierror.Error. A missing key
// gets the legacy not-found message; other failures keep the upstream status
// and code.
func mapS3Error(key string, err error) error {
	status := http.StatusInternalServerError
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return apierror.Wrap(err, status, apierror.CodeInternalError)
	}
	return mapCode(key, apiErr.ErrorCode(), apiErr.ErrorMessage(), status, err)
}

func mapMinioError(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "" {
		return apierror.Wrap(err, http.StatusInternalServerError, apierror.CodeInternalError)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return mapCode(key, resp.Code, resp.Message, status, err)
}

func mapCode(key, code, message string, status int, err error) error {
	switch code {
	case "NoSuchKey", "NotFound":
		return apierror.NoSuchKey(key, err)
	case "AccessDenied":
		if message == "" {
			message = "Access Denied"
		}
		return &apierror.Error{Status: http.StatusForbidden, Code: apierror.CodeAccessDenied, Message: message, Err: err}
	}
	if message == "" {
		message = err.Error()
	}
	return &apierror.Error{Status: status, Code: code, Message: message, Err: err}
}
