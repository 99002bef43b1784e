package server

import (
	"io"

	"folio/internal/models"
	"folio/internal/service"
	"folio/internal/storage"

	"github.com/gofiber/fiber/v2"
)

type commentRequest struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

type uploadRequest struct {
	Data        string `json:"data"`
	ContentType string `json:"contentType"`
}

// SliderData handles GET /posts/slider-data
func (s *Server) SliderData(c *fiber.Ctx) error {
	items, err := s.postService.Slider(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "sliderData": items})
}

// GetPost handles GET /posts/:slug
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postService.GetBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "post": post})
}

// CreatePost handles POST /posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var in service.PostInput
	if err := c.BodyParser(&in); err != nil {
		return models.NewBadRequestError("Invalid request body")
	}
	post, err := s.postService.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success", "post": post})
}

// UpdatePost handles PATCH /posts/:slug
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	var in service.PostInput
	if err := c.BodyParser(&in); err != nil {
		return models.NewBadRequestError("Invalid request body")
	}
	post, err := s.postService.Update(c.UserContext(), c.Params("slug"), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "post": post})
}

// DeletePost handles DELETE /posts/:slug. The parameter may also be a post id.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.postService.Delete(c.UserContext(), c.Params("slug")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// React toggles a like. Anonymous readers get a like token to send back
// as author next time.
func (s *Server) React(c *fiber.Ctx) error {
	var req struct {
		Author string `json:"author"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.NewBadRequestError("Invalid request body")
		}
	}
	post, token, err := s.postService.React(c.UserContext(), c.Params("slug"), req.Author)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":        "success",
		"post":          post,
		"newLikeAuthor": token,
	})
}

// CreateComment accepts {data:{author,text}} as well as a flat {author,text}.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req struct {
		commentRequest
		Data *commentRequest `json:"data"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.NewBadRequestError("Invalid request body")
	}
	in := req.commentRequest
	if req.Data != nil {
		in = *req.Data
	}
	comments, err := s.postService.Comment(c.UserContext(), c.Params("slug"), in.Author, in.Text)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "comments": comments})
}

// DeleteComment handles POST /posts/:slug/delete-comment
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	var req struct {
		CommentID string `json:"commentId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.NewBadRequestError("Invalid request body")
	}
	comments, err := s.postService.DeleteComment(c.UserContext(), c.Params("slug"), req.CommentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "comments": comments})
}

// TogglePublish handles PATCH /posts/toggle-publish/:postId
func (s *Server) TogglePublish(c *fiber.Ctx) error {
	post, err := s.postService.TogglePublish(c.UserContext(), c.Params("postId"))
	if err != nil {
		return err
	}
	return sendVisibility(c, post)
}

// ToggleSlider handles PATCH /posts/toggle-slider/:postId
func (s *Server) ToggleSlider(c *fiber.Ctx) error {
	post, err := s.postService.ToggleSlider(c.UserContext(), c.Params("postId"))
	if err != nil {
		return err
	}
	return sendVisibility(c, post)
}

func sendVisibility(c *fiber.Ctx, post *models.Post) error {
	return c.JSON(fiber.Map{
		"status":      "success",
		"isPublished": post.IsPublished,
		"isSlider":    post.IsSlider,
	})
}

// UploadFile accepts a multipart "file" field or a JSON body carrying a data
// URI (or bare base64) in "data".
func (s *Server) UploadFile(c *fiber.Ctx) error {
	content, err := uploadContent(c)
	if err != nil {
		return err
	}
	obj, err := s.postService.UploadFile(c.UserContext(), content)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"fileId": obj.FileID, "url": obj.URL},
	})
}

func uploadContent(c *fiber.Ctx) ([]byte, error) {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, models.NewBadRequestError("Could not read the uploaded file")
		}
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			return nil, models.NewBadRequestError("Could not read the uploaded file")
		}
		return content, nil
	}

	var req uploadRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, models.NewBadRequestError("Invalid request body")
	}
	return storage.DecodeDataURI(req.Data)
}

// DeleteFile handles DELETE /posts/delete-file
func (s *Server) DeleteFile(c *fiber.Ctx) error {
	var in service.DeleteFileInput
	if err := c.BodyParser(&in); err != nil {
		return models.NewBadRequestError("Invalid request body")
	}
	res, err := s.postService.DeleteFile(c.UserContext(), in)
	if err != nil {
		return err
	}
	if res.SingleDeleted {
		return c.JSON(fiber.Map{
			"status":          "success",
			"isSingleDeleted": true,
			"fileId":          res.FileID,
		})
	}
	return c.JSON(fiber.Map{
		"status":     "success",
		"coverImage": res.CoverImage,
		"assets":     res.Assets,
	})
}
