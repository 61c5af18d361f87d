package handlers

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/services"
)

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

// formUploads opens the files posted under field. The returned closer must
// be called once the uploads have been consumed.
func formUploads(c *fiber.Ctx, field string) ([]services.Upload, func(), error) {
	noop := func() {}
	if !isMultipart(c) {
		return nil, noop, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, noop, fiber.NewError(fiber.StatusBadRequest, "invalid multipart form")
	}

	headers := form.File[field]
	uploads := make([]services.Upload, 0, len(headers))
	closers := make([]io.Closer, 0, len(headers))
	closeAll := func() {
		for _, f := range closers {
			_ = f.Close()
		}
	}

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, fiber.NewError(fiber.StatusBadRequest, "failed to read uploaded file")
		}
		closers = append(closers, f)
		uploads = append(uploads, services.Upload{Filename: fh.Filename, Body: f})
	}

	return uploads, closeAll, nil
}
