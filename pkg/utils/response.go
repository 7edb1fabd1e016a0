package utils

import "github.com/gofiber/fiber/v2"

// Every endpoint answers with the same envelope: a stable status code,
// a human-readable verbose message and an optional data payload.
func Res(c *fiber.Ctx, httpStatus int, status, verbose string, data interface{}) error {
	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"verbose": verbose,
		"data":    data,
	})
}

func Success(c *fiber.Ctx, verbose string, data interface{}) error {
	return Res(c, fiber.StatusOK, "SUCCESS", verbose, data)
}

func Created(c *fiber.Ctx, verbose string, data interface{}) error {
	return Res(c, fiber.StatusCreated, "SUCCESS", verbose, data)
}

func Failure(c *fiber.Ctx, httpStatus int, status, verbose string) error {
	return Res(c, httpStatus, status, verbose, nil)
}
