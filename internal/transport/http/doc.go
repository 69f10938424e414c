// Package http implements the HTTP handlers of the usage EDA service. It is
// a thin layer between chi routing and the services package: handlers parse
// and validate request parameters, call a service, and render the result.
//
// # Routes
//
//	GET    /api/datasets                         list datasets
//	POST   /api/datasets                         multipart upload
//	DELETE /api/datasets/{name}                  remove a dataset
//	GET    /api/datasets/{name}/report           full report (?n, ?policy)
//	GET    /api/datasets/{name}/top-consumers    (?n)
//	GET    /api/datasets/{name}/categories
//	GET    /api/datasets/{name}/describe
//	GET    /api/datasets/{name}/ratio            (?n, ?policy)
//	GET    /api/datasets/{name}/growth           (?n, ?policy)
//	GET    /api/datasets/{name}/correlation
//	GET    /api/datasets/{name}/histogram        (?column, ?bins)
//	GET    /api/datasets/{name}/boxplot          (?column)
//	GET    /api/datasets/{name}/deciles          (?column)
//	GET    /api/datasets/{name}/scatter          (?x, ?y)
//	GET    /api/datasets/{name}/export           (?format=csv|xlsx, ?n, ?policy)
//	GET    /api/runs                             run history (?limit)
//	GET    /api/runs/{id}
//	GET    /api/health, /api/health/ready, /api/health/live, /api/version
//
// # Error Handling
//
// Every failure is rendered as RFC 7807 Problem Details by
// errors.ErrorHandler, for example:
//
//	{
//	    "type": "/errors/dataset/missing-column",
//	    "title": "Missing Column",
//	    "status": 422,
//	    "detail": "column \"Total UL (Bytes)\" not found",
//	    "instance": "/api/datasets/usage.csv/report",
//	    "columns": ["Total UL (Bytes)"]
//	}
//
// Handlers depend on the small interfaces in service_interfaces.go and are
// tested with testify mocks behind httptest.
package http
