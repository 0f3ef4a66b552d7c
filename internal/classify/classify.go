// Package classify wraps the face detection and content moderation service
// used by smart crop and content moderation edits.
package classify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rekognitiontypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"

	"github.com/fpang/image-handler/internal/apierror"
)

// BoundingBox is a face rectangle as fractions of the image size. Values
// come straight from the service and may fall outside [0,1].
type BoundingBox struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Label is a moderation label.
type Label struct {
	Name       string
	ParentName string
	Confidence float64
}

// Classifier detects faces and moderation labels in JPEG or PNG bytes.
type Classifier interface {
	DetectFaces(ctx context.Context, image []byte) ([]BoundingBox, error)
	DetectModerationLabels(ctx context.Context, image []byte, minConfidence float64) ([]Label, error)
}

// RekognitionAPI is the subset of the Rekognition client used here.
type RekognitionAPI interface {
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
	DetectModerationLabels(ctx context.Context, params *rekognition.DetectModerationLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectModerationLabelsOutput, error)
}

// Rekognition is a Classifier backed by Amazon Rekognition.
type Rekognition struct {
	client RekognitionAPI
}

// NewRekognition creates a classifier from an AWS configuration.
func NewRekognition(cfg aws.Config) *Rekognition {
	return &Rekognition{client: rekognition.NewFromConfig(cfg)}
}

// NewRekognitionFromClient wraps an existing client.
func NewRekognitionFromClient(client RekognitionAPI) *Rekognition {
	return &Rekognition{client: client}
}

// DetectFaces returns one bounding box per detected face, ordered as the
// service returns them.
func (r *Rekognition) DetectFaces(ctx context.Context, image []byte) ([]BoundingBox, error) {
	out, err := r.client.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image: &rekognitiontypes.Image{Bytes: image},
	})
	if err != nil {
		log.Error().Err(err).Msg("DetectFaces failed")
		return nil, wrapError(err)
	}

	boxes := make([]BoundingBox, 0, len(out.FaceDetails))
	for _, face := range out.FaceDetails {
		if face.BoundingBox == nil {
			continue
		}
		boxes = append(boxes, BoundingBox{
			Left:   float64(aws.ToFloat32(face.BoundingBox.Left)),
			Top:    float64(aws.ToFloat32(face.BoundingBox.Top)),
			Width:  float64(aws.ToFloat32(face.BoundingBox.Width)),
			Height: float64(aws.ToFloat32(face.BoundingBox.Height)),
		})
	}
	log.Debug().Int("faces", len(boxes)).Msg("DetectFaces complete")
	return boxes, nil
}

// DetectModerationLabels returns the labels found with at least
// minConfidence percent confidence.
func (r *Rekognition) DetectModerationLabels(ctx context.Context, image []byte, minConfidence float64) ([]Label, error) {
	out, err := r.client.DetectModerationLabels(ctx, &rekognition.DetectModerationLabelsInput{
		Image:         &rekognitiontypes.Image{Bytes: image},
		MinConfidence: aws.Float32(float32(minConfidence)),
	})
	if err != nil {
		log.Error().Err(err).Msg("DetectModerationLabels failed")
		return nil, wrapError(err)
	}

	labels := make([]Label, 0, len(out.ModerationLabels))
	for _, l := range out.ModerationLabels {
		labels = append(labels, Label{
			Name:       aws.ToString(l.Name),
			ParentName: aws.ToString(l.ParentName),
			Confidence: float64(aws.ToFloat32(l.Confidence)),
		})
	}
	log.Debug().Int("labels", len(labels)).Float64("minConfidence", minConfidence).Msg("DetectModerationLabels complete")
	return labels, nil
}

// wrapError keeps the upstream status and code of a service failure.
func wrapError(err error) error {
	status := http.StatusInternalServerError
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &apierror.Error{Status: status, Code: apiErr.ErrorCode(), Message: apiErr.ErrorMessage(), Err: err}
	}
	return apierror.Wrap(fmt.Errorf("classification: %w", err), status, apierror.CodeClassificationServiceFailed)
}
