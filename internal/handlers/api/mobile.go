package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v3"

	"bluecarbon/internal/imaging"
	"bluecarbon/internal/models"
	"bluecarbon/internal/submissions"
)

const mobilePageLimit = 20

// MobileHandler serves the Android app endpoints.
type MobileHandler struct {
	subs SubmissionService
}

// NewMobileHandler creates a new mobile handler.
func NewMobileHandler(subs SubmissionService) *MobileHandler {
	return &MobileHandler{subs: subs}
}

// Submit accepts a multipart restoration claim with up to five images.
func (h *MobileHandler) Submit(c fiber.Ctx) error {
	req := &submissions.CreateRequest{
		UserID:      c.FormValue("userId"),
		Type:        c.FormValue("type"),
		Latitude:    c.FormValue("latitude"),
		Longitude:   c.FormValue("longitude"),
		Area:        c.FormValue("area"),
		Description: c.FormValue("description"),
		DeviceInfo:  c.FormValue("deviceInfo"),
		AppVersion:  c.FormValue("appVersion"),
	}

	if form, err := c.MultipartForm(); err == nil {
		files := form.File["images"]
		if len(files) > submissions.MaxImages {
			return serviceError(c, &submissions.ValidationError{Invalid: []string{"images"}}, "", "")
		}
		for _, fh := range files {
			if fh.Size > imaging.MaxUploadSize {
				return serviceError(c, &submissions.ValidationError{Invalid: []string{"images"}}, "", "")
			}
			data, err := readUpload(fh)
			if err != nil {
				return jsonErrorDetail(c, fiber.StatusBadRequest, "Failed to read upload", err)
			}
			req.Images = append(req.Images, submissions.Upload{Name: fh.Filename, Size: fh.Size, Data: data})
		}
	}

	resp, err := h.subs.Create(c.Context(), req)
	if err != nil {
		return serviceError(c, err, "", "Failed to create submission")
	}
	return jsonCreated(c, resp)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, imaging.MaxUploadSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > imaging.MaxUploadSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", fh.Filename, imaging.MaxUploadSize)
	}
	return data, nil
}

// UserSubmissions returns a page of the user's submissions.
func (h *MobileHandler) UserSubmissions(c fiber.Ctx) error {
	filter := models.SubmissionFilter{
		UserID: c.Params("userId"),
		Status: c.Query("status"),
	}
	list, page, err := h.subs.List(c.Context(), filter, queryInt(c, "page", 1), queryInt(c, "limit", mobilePageLimit), mobilePageLimit)
	if err != nil {
		return serviceError(c, err, "", "Failed to fetch submissions")
	}
	return jsonPage(c, list, page)
}

// Profile returns the user with their credit total.
func (h *MobileHandler) Profile(c fiber.Ctx) error {
	user, err := h.subs.Profile(c.Context(), c.Params("userId"))
	if err != nil {
		return serviceError(c, err, "User not found", "Failed to fetch user profile")
	}
	return jsonSuccess(c, user)
}

// Credits returns a page of the user's credit records.
func (h *MobileHandler) Credits(c fiber.Ctx) error {
	list, page, err := h.subs.Credits(c.Context(), c.Params("userId"), queryInt(c, "page", 1), queryInt(c, "limit", mobilePageLimit), mobilePageLimit)
	if err != nil {
		return serviceError(c, err, "", "Failed to fetch credits")
	}
	return jsonPage(c, list, page)
}

// UpdateProfile stores the user's name and email.
func (h *MobileHandler) UpdateProfile(c fiber.Ctx) error {
	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	user, err := h.subs.UpdateProfile(c.Context(), c.Params("userId"), body.Name, body.Email)
	if err != nil {
		return serviceError(c, err, "", "Failed to update profile")
	}
	return jsonSuccess(c, user)
}

// SetWallet stores the wallet credits are issued to.
func (h *MobileHandler) SetWallet(c fiber.Ctx) error {
	var body struct {
		WalletAddress string `json:"walletAddress"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := h.subs.SetWallet(c.Context(), c.Params("userId"), body.WalletAddress); err != nil {
		return serviceError(c, err, "", "Failed to update wallet")
	}
	return jsonSuccess(c, fiber.Map{"walletAddress": body.WalletAddress})
}
