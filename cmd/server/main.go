package main

import (
	_ "github.com/eleven-am/vision-backend/docs"
	"github.com/eleven-am/vision-backend/internal/bootstrap"
)

// @title Vision Backend API
// @version 1.0.0
// @description Describes images, live webcam frames and videos with a vision-capable chat model

// @BasePath /

func main() {
	bootstrap.Run()
}
