package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"workshopportal/cmd/middleware"
	"workshopportal/internal/service"
)

type Routers struct {
	Service       service.Service
	SessionSecret []byte
	Mode          string
	// FrontendDir holds index.html and adm.html. Empty disables the pages.
	FrontendDir string
}

func NewRouters(r *Routers) *ginext.Engine {
	mode := r.Mode
	if mode == "" {
		mode = "release"
	}
	app := ginext.New(mode)

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())
	app.Use(middleware.Sessions(r.SessionSecret))

	apiGroup := app.Group("/v1")
	apiGroup.GET("/workshops", r.Service.Workshops)
	apiGroup.POST("/registrations", r.Service.Register)
	apiGroup.GET("/qr", r.Service.QRCode)

	apiGroup.POST("/admin/login", r.Service.Login)
	apiGroup.POST("/admin/logout", r.Service.Logout)
	apiGroup.GET("/admin/session", r.Service.AdminStatus)

	admin := apiGroup.Group("/admin", middleware.RequireAdmin())
	admin.GET("/registrations", r.Service.ListRegistrations)
	admin.DELETE("/registrations/:id", r.Service.DeleteRegistration)
	admin.GET("/summary", r.Service.Summary)
	admin.GET("/chart.png", r.Service.Chart)
	admin.GET("/export.csv", r.Service.ExportCSV)
	admin.POST("/export", r.Service.ExportToDisk)

	if dir := r.FrontendDir; dir != "" {
		app.GET("/", func(c *ginext.Context) {
			c.File(dir + "/index.html")
		})
		app.GET("/adm", func(c *ginext.Context) {
			c.File(dir + "/adm.html")
		})
		app.Static("/frontend", dir)
	}

	return app
}
