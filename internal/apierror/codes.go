package apierror

import (
	"fmt"
	"net/http"
)

// Stable error codes.
const (
	CodeInternalError                = "InternalError"
	CodeCannotDecodeRequest          = "DecodeRequest::CannotDecodeRequest"
	CodeCannotReadPath               = "DecodeRequest::CannotReadPath"
	CodeRequestTypeError             = "RequestTypeError"
	CodeCannotAccessBucket           = "ImageBucket::CannotAccessBucket"
	CodeCannotFindBucket             = "ImageBucket::CannotFindBucket"
	CodeNoSourceBuckets              = "GetAllowedSourceBuckets::NoSourceBuckets"
	CodeCannotParseEdits             = "ImageEdits::CannotParseEdits"
	CodeCannotFindImage              = "ImageEdits::CannotFindImage"
	CodeInvalidColor                 = "Color::InvalidColor"
	CodeAreaOutOfBounds              = "Crop::AreaOutOfBounds"
	CodePaddingOutOfBounds           = "SmartCrop::PaddingOutOfBounds"
	CodeFaceIndexOutOfRange          = "SmartCrop::FaceIndexOutOfRange"
	CodeTooLargeImage                = "TooLargeImageException"
	CodeUnsupportedOutputImageFormat = "UnsupportedOutputImageFormatException"
	CodeUnsupportedSourceImageFormat = "ImageHandler::UnsupportedSourceImageFormat"
	CodeNoSuchKey                    = "NoSuchKey"
	CodeAccessDenied                 = "AccessDenied"
	CodeAuthorizationQueryParameters = "AuthorizationQueryParametersError"
	CodeSignatureDoesNotMatch        = "SignatureDoesNotMatch"
	CodeSignatureValidationFailure   = "SignatureValidationFailure"
	CodePathUndefined                = "ThumborMapping::ParseCustomPath::PathUndefined"
	CodeRewriteMatchPatternUndefined = "ThumborMapping::ParseCustomPath::RewriteMatchPatternUndefined"
	CodeRewriteSubstitutionUndefined = "ThumborMapping::ParseCustomPath::RewriteSubstitutionUndefined"
	CodeRewriteMatchPatternInvalid   = "ThumborMapping::ParseCustomPath::RewriteMatchPatternInvalid"
	CodeImageProcessingFailed        = "ImageHandler::ProcessingFailed"
	CodeClassificationServiceFailed  = "ImageHandler::ClassificationFailed"
)

func CannotDecodeRequest(err error) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeCannotDecodeRequest,
		Message: "The image request you provided could not be decoded. Please check that your request is base64 encoded properly and refer to the documentation for additional guidance.",
		Err:     err,
	}
}

func CannotReadPath() *Error {
	return New(http.StatusBadRequest, CodeCannotReadPath,
		"The URL path you provided could not be read. Please ensure that it is properly formed according to the solution documentation.")
}

func RequestTypeError() *Error {
	return New(http.StatusBadRequest, CodeRequestTypeError,
		"The type of request you are making could not be processed. Please ensure that your original image is of a supported file type (jpg, png, tiff, webp, svg, gif) and that your image request is provided in the correct syntax. Refer to the documentation for additional guidance on forming image requests.")
}

// CannotInferImageType is raised when an original without a usable content
// type has an unrecognised signature. It shares the RequestTypeError code but
// is a server-side failure.
func CannotInferImageType() *Error {
	return New(http.StatusInternalServerError, CodeRequestTypeError,
		"The file does not have an extension and the file type could not be inferred. Please ensure that your original image is of a supported file type (jpg, png, tiff, webp, svg). Refer to the documentation for additional guidance on forming image requests.")
}

func CannotAccessBucket() *Error {
	return New(http.StatusForbidden, CodeCannotAccessBucket,
		"The bucket you specified could not be accessed. Please check that the bucket is specified in your SOURCE_BUCKETS.")
}

func CannotFindBucket() *Error {
	return New(http.StatusNotFound, CodeCannotFindBucket,
		"The bucket you specified could not be found. Please check the spelling of the bucket name in your request.")
}

func NoSourceBuckets() *Error {
	return New(http.StatusBadRequest, CodeNoSourceBuckets,
		"The SOURCE_BUCKETS variable could not be read. Please check that it is not empty and contains at least one source bucket, or multiple buckets separated by commas. Spaces can be provided between commas and bucket names, these will be automatically parsed out when decoding.")
}

func CannotParseEdits(err error) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeCannotParseEdits,
		Message: "The edits you provided could not be parsed. Please check the syntax of your request and refer to the documentation for additional guidance.",
		Err:     err,
	}
}

func CannotFindImage() *Error {
	return New(http.StatusNotFound, CodeCannotFindImage,
		"The image you specified could not be found. Please check your request syntax as well as the bucket you specified to ensure it exists.")
}

func InvalidColor(value string) *Error {
	return New(http.StatusBadRequest, CodeInvalidColor,
		fmt.Sprintf("The color %q is not a valid hex color. Use # followed by 3 or 6 hexadecimal digits.", value))
}

func AreaOutOfBounds(err error) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeAreaOutOfBounds,
		Message: "The cropping area you provided exceeds the boundaries of the original image. Please try choosing a correct cropping value.",
		Err:     err,
	}
}

func PaddingOutOfBounds(err error) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodePaddingOutOfBounds,
		Message: "The padding value you provided exceeds the boundaries of the original image. Please try choosing a smaller value or applying padding with a separate crop for greater specificity.",
		Err:     err,
	}
}

func FaceIndexOutOfRange() *Error {
	return New(http.StatusBadRequest, CodeFaceIndexOutOfRange,
		"You have provided a FaceIndex value that exceeds the length of the zero-based detectedFaces array. Please specify a value that is in-range.")
}

func TooLargeImage() *Error {
	return New(http.StatusRequestEntityTooLarge, CodeTooLargeImage,
		"The converted image is too large to return.")
}

func UnsupportedOutputImageFormat(format string) *Error {
	return New(http.StatusInternalServerError, CodeUnsupportedOutputImageFormat,
		fmt.Sprintf("Format to %s not supported", format))
}

func UnsupportedSourceImageFormat(contentType string) *Error {
	return New(http.StatusBadRequest, CodeUnsupportedSourceImageFormat,
		fmt.Sprintf("Images of type %s can only be returned unmodified.", contentType))
}

func NoSuchKey(key string, err error) *Error {
	return &Error{
		Status:  http.StatusNotFound,
		Code:    CodeNoSuchKey,
		Message: fmt.Sprintf("The image %s does not exist or the request may not be base64 encoded properly.", key),
		Err:     err,
	}
}

// ImageProcessingFailed reports an edit the image library rejected.
func ImageProcessingFailed(op string, err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeImageProcessingFailed,
		Message: fmt.Sprintf("The %s edit could not be applied.", op),
		Err:     err,
	}
}

func InternalError() *Error {
	return New(http.StatusInternalServerError, CodeInternalError,
		"Internal error. Please contact the system administrator.")
}
