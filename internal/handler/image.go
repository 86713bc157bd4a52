package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/templui/cutout/internal/model"
	"github.com/templui/cutout/internal/service"
	"github.com/templui/cutout/internal/validation"
)

// multipartOverhead is room for the form fields around the file part.
const multipartOverhead = 1 << 20

type imageHandler struct {
	imageService  *service.ImageService
	userService   *service.UserService
	maxUploadSize int64
}

func NewImageHandler(imageService *service.ImageService, userService *service.UserService, maxUploadSize int64) *imageHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = validation.MaxUploadSize
	}
	return &imageHandler{
		imageService:  imageService,
		userService:   userService,
		maxUploadSize: maxUploadSize,
	}
}

type imagesResponse struct {
	Images []*model.Image `json:"images"`
}

func (h *imageHandler) UserImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.imageService.UserImages(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if images == nil {
		images = []*model.Image{}
	}

	writeJSON(w, http.StatusOK, imagesResponse{Images: images})
}

// Upload accepts a processed PNG as multipart field "file". The owner is
// the "user_id" field, or the session user when it is missing.
func (h *imageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	err := r.ParseMultipartForm(32 << 20)
	if err != nil {
		writeError(w, r, uploadError(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: missing file", errInvalidRequest))
		return
	}
	defer func() { _ = file.Close() }()

	err = validation.ValidateImageUpload(header, h.maxUploadSize)
	if err != nil {
		writeError(w, r, err)
		return
	}

	userID, err := actingUserID(r, h.userService, r.FormValue("user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	image, err := h.imageService.Upload(r.Context(), userID, header.Filename, file, header.Size)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, image)
}

// uploadError keeps body-size failures recognisable and hides parser detail.
func uploadError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return err
	}
	slog.Debug("failed to parse upload form", "error", err)
	return errInvalidRequest
}

type metadataRequest struct {
	UserID     string `json:"user_id"`
	StorageURL string `json:"storage_url"`
	Filename   string `json:"filename"`
	FileSize   int64  `json:"file_size"`
	IsClaimed  bool   `json:"is_claimed"`
}

// SaveMetadata records an image the client already put into storage.
func (h *imageHandler) SaveMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	err := decodeJSON(r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.StorageURL == "" || req.Filename == "" {
		writeError(w, r, fmt.Errorf("%w: storage_url and filename are required", errInvalidRequest))
		return
	}

	userID, err := actingUserID(r, h.userService, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	image, err := h.imageService.SaveMetadata(r.Context(), userID, req.StorageURL, req.Filename, req.FileSize, req.IsClaimed)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, image)
}

type ownerRequest struct {
	UserID string `json:"user_id"`
}

func (h *imageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	err := decodeJSON(r, &req)
	if err != nil {
		writeResult(w, r, err)
		return
	}
	if req.UserID == "" {
		req.UserID = r.URL.Query().Get("user_id")
	}

	userID, err := actingUserID(r, h.userService, req.UserID)
	if err != nil {
		writeResult(w, r, err)
		return
	}

	writeResult(w, r, h.imageService.Delete(r.Context(), r.PathValue("imageID"), userID))
}

type visibilityRequest struct {
	UserID   string `json:"user_id"`
	IsPublic *bool  `json:"is_public"`
}

func (h *imageHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	err := decodeJSON(r, &req)
	if err != nil {
		writeResult(w, r, err)
		return
	}
	if req.IsPublic == nil {
		writeResult(w, r, fmt.Errorf("%w: is_public is required", errInvalidRequest))
		return
	}

	userID, err := actingUserID(r, h.userService, req.UserID)
	if err != nil {
		writeResult(w, r, err)
		return
	}

	writeResult(w, r, h.imageService.SetVisibility(r.Context(), r.PathValue("imageID"), userID, *req.IsPublic))
}

// RemoveExpiration makes every image of the user permanent.
func (h *imageHandler) RemoveExpiration(w http.ResponseWriter, r *http.Request) {
	_, err := h.imageService.RemoveExpiration(r.Context(), r.PathValue("userID"))
	writeResult(w, r, err)
}

// Feed serves one page of public images. Unparseable pages read as 0.
func (h *imageHandler) Feed(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 0
	}

	result, err := h.imageService.PublicImages(r.Context(), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if result.Images == nil {
		result.Images = []*model.PublicImage{}
	}

	writeJSON(w, http.StatusOK, result)
}
