package prediction

import "YoloPipeline/pkg/response"

var (
	ErrNoImage                = response.NewError(400, "no image file provided")
	ErrUnsupportedFileType    = response.NewError(400, "unsupported file type")
	ErrFileTooLarge           = response.NewError(400, "file too large, maximum size is 5MB")
	ErrEmptyImage             = response.NewError(400, "uploaded image is empty")
	ErrInvalidOutputUpdate    = response.NewError(400, "update body must be a non-empty JSON object")
	ErrOutputNotFound         = response.NewError(404, "output not found")
	ErrInferenceFailed        = response.NewError(502, "inference backend failed")
	ErrDocStoreUnavailable    = response.NewError(503, "document store unavailable")
	ErrRecipeCacheUnavailable = response.NewError(503, "recipe cache unavailable")
	ErrInternalServerError    = response.NewError(500, "internal server error")
)
