// Package docs holds the Swagger document served at /swagger. It is maintained by hand
// alongside the handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/auth/register": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Register",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/httpapi.sessionResp"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Account",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httpapi.registerReq"
						}
					}
				]
			}
		},
		"/auth/login": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Login",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.sessionResp"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Credentials",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httpapi.loginReq"
						}
					}
				]
			}
		},
		"/auth/me": {
			"get": {
				"tags": [
					"auth"
				],
				"summary": "Current user",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.userResp"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/users/profile": {
			"put": {
				"tags": [
					"users"
				],
				"summary": "Update own profile",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.userResp"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Fields to change",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/service.ProfileUpdate"
						}
					}
				]
			}
		},
		"/products": {
			"get": {
				"tags": [
					"products"
				],
				"summary": "List products",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.productPageResp"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"description": "Name or description contains",
						"name": "keyword",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Exact category",
						"name": "category",
						"in": "query"
					},
					{
						"type": "number",
						"description": "Min price",
						"name": "minPrice",
						"in": "query"
					},
					{
						"type": "number",
						"description": "Max price",
						"name": "maxPrice",
						"in": "query"
					},
					{
						"type": "string",
						"description": "createdAt, price, name, rating, stock or numReviews",
						"name": "sortBy",
						"in": "query"
					},
					{
						"type": "string",
						"description": "asc or desc",
						"name": "order",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Page (1-based)",
						"name": "page",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Page size",
						"name": "limit",
						"in": "query"
					}
				]
			},
			"post": {
				"tags": [
					"products"
				],
				"summary": "Create product",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/httpapi.productResp"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Product",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httpapi.productReq"
						}
					}
				]
			}
		},
		"/products/featured": {
			"get": {
				"tags": [
					"products"
				],
				"summary": "Featured products",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.productsResp"
						}
					}
				}
			}
		},
		"/products/{id}": {
			"get": {
				"tags": [
					"products"
				],
				"summary": "Get product by id",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.productResp"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"description": "Product ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"put": {
				"tags": [
					"products"
				],
				"summary": "Update product",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.productResp"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Product ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Fields to change",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/domain.ProductPatch"
						}
					}
				]
			},
			"delete": {
				"tags": [
					"products"
				],
				"summary": "Delete product",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.messageResp"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "string",
						"description": "Product ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/orders": {
			"get": {
				"tags": [
					"orders"
				],
				"summary": "All orders",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.ordersResp"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			},
			"post": {
				"tags": [
					"orders"
				],
				"summary": "Create order",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/httpapi.orderResp"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Order",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/service.CreateOrderInput"
						}
					}
				]
			}
		},
		"/orders/myorders": {
			"get": {
				"tags": [
					"orders"
				],
				"summary": "Orders of the current user, newest first",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.ordersResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/orders/{id}": {
			"get": {
				"tags": [
					"orders"
				],
				"summary": "Get order by id",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.orderResp"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "string",
						"description": "Order ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/orders/{id}/pay": {
			"put": {
				"tags": [
					"orders"
				],
				"summary": "Mark order paid",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.orderResp"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Order ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Gateway confirmation",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/domain.PaymentResult"
						}
					}
				]
			}
		},
		"/orders/{id}/deliver": {
			"put": {
				"tags": [
					"orders"
				],
				"summary": "Mark order delivered",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.orderResp"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "string",
						"description": "Order ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/cart": {
			"get": {
				"tags": [
					"cart"
				],
				"summary": "Current cart",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.cartResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			},
			"delete": {
				"tags": [
					"cart"
				],
				"summary": "Empty the cart",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.cartResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/cart/items": {
			"post": {
				"tags": [
					"cart"
				],
				"summary": "Add a product to the cart",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.cartResp"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Line",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httpapi.addCartItemReq"
						}
					}
				]
			}
		},
		"/cart/items/{productId}": {
			"put": {
				"tags": [
					"cart"
				],
				"summary": "Set a line's quantity",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.cartResp"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Product ID",
						"name": "productId",
						"in": "path",
						"required": true
					},
					{
						"description": "Quantity",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httpapi.setQuantityReq"
						}
					}
				]
			},
			"delete": {
				"tags": [
					"cart"
				],
				"summary": "Remove a line",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.cartResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "string",
						"description": "Product ID",
						"name": "productId",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/checkout": {
			"post": {
				"tags": [
					"checkout"
				],
				"summary": "Check out the current cart",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/httpapi.checkoutResp"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					},
					"402": {
						"description": "Payment Required",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Client key; a repeat returns the first order",
						"name": "Idempotency-Key",
						"in": "header"
					},
					{
						"description": "Shipping and payment",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httpapi.checkoutReq"
						}
					}
				]
			}
		},
		"/stripe/create-payment-intent": {
			"post": {
				"tags": [
					"payment"
				],
				"summary": "Create a payment intent for a client-side payment form",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.paymentIntentResp"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					},
					"402": {
						"description": "Payment Required",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"$ref": "#/definitions/httpapi.errorResp"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Amount",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httpapi.paymentIntentReq"
						}
					}
				]
			}
		},
		"/health": {
			"get": {
				"tags": [
					"health"
				],
				"summary": "Health",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httpapi.healthResp"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"domain.Identity": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"role": {
					"type": "string"
				},
				"address": {
					"type": "string"
				},
				"phone": {
					"type": "string"
				},
				"createdAt": {
					"type": "string"
				}
			}
		},
		"domain.Product": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"price": {
					"type": "number"
				},
				"image": {
					"type": "string"
				},
				"category": {
					"type": "string"
				},
				"brand": {
					"type": "string"
				},
				"stock": {
					"type": "integer"
				},
				"featured": {
					"type": "boolean"
				},
				"rating": {
					"type": "number"
				},
				"numReviews": {
					"type": "integer"
				},
				"createdAt": {
					"type": "string"
				}
			}
		},
		"domain.ProductPatch": {
			"type": "object",
			"properties": {
				"name": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"price": {
					"type": "number"
				},
				"image": {
					"type": "string"
				},
				"category": {
					"type": "string"
				},
				"brand": {
					"type": "string"
				},
				"stock": {
					"type": "integer"
				},
				"featured": {
					"type": "boolean"
				},
				"rating": {
					"type": "number"
				},
				"numReviews": {
					"type": "integer"
				}
			}
		},
		"domain.OrderItem": {
			"type": "object",
			"properties": {
				"product": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"price": {
					"type": "number"
				},
				"image": {
					"type": "string"
				},
				"quantity": {
					"type": "integer"
				}
			}
		},
		"domain.ShippingAddress": {
			"type": "object",
			"properties": {
				"street": {
					"type": "string"
				},
				"city": {
					"type": "string"
				},
				"state": {
					"type": "string"
				},
				"zipCode": {
					"type": "string"
				},
				"country": {
					"type": "string"
				}
			}
		},
		"domain.PaymentResult": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"status": {
					"type": "string"
				},
				"update_time": {
					"type": "string"
				},
				"email_address": {
					"type": "string"
				}
			}
		},
		"domain.OrderOwner": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"email": {
					"type": "string"
				}
			}
		},
		"domain.Order": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"userId": {
					"type": "string"
				},
				"user": {
					"$ref": "#/definitions/domain.OrderOwner"
				},
				"orderItems": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/domain.OrderItem"
					}
				},
				"shippingAddress": {
					"$ref": "#/definitions/domain.ShippingAddress"
				},
				"paymentMethod": {
					"type": "string"
				},
				"itemsPrice": {
					"type": "number"
				},
				"taxPrice": {
					"type": "number"
				},
				"shippingPrice": {
					"type": "number"
				},
				"totalPrice": {
					"type": "number"
				},
				"isPaid": {
					"type": "boolean"
				},
				"paidAt": {
					"type": "string"
				},
				"paymentResult": {
					"$ref": "#/definitions/domain.PaymentResult"
				},
				"isDelivered": {
					"type": "boolean"
				},
				"deliveredAt": {
					"type": "string"
				},
				"createdAt": {
					"type": "string"
				}
			}
		},
		"cart.Item": {
			"type": "object",
			"properties": {
				"productId": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"price": {
					"type": "number"
				},
				"image": {
					"type": "string"
				},
				"quantity": {
					"type": "integer"
				}
			}
		},
		"service.ProfileUpdate": {
			"type": "object",
			"properties": {
				"name": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"address": {
					"type": "string"
				},
				"phone": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			}
		},
		"service.CreateOrderInput": {
			"type": "object",
			"properties": {
				"orderItems": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/domain.OrderItem"
					}
				},
				"shippingAddress": {
					"$ref": "#/definitions/domain.ShippingAddress"
				},
				"paymentMethod": {
					"type": "string"
				},
				"taxPrice": {
					"type": "number"
				},
				"shippingPrice": {
					"type": "number"
				}
			}
		},
		"httpapi.errorResp": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"message": {
					"type": "string"
				},
				"state": {
					"type": "string"
				}
			}
		},
		"httpapi.messageResp": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"message": {
					"type": "string"
				}
			}
		},
		"httpapi.registerReq": {
			"type": "object",
			"properties": {
				"name": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			}
		},
		"httpapi.loginReq": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			}
		},
		"httpapi.sessionResp": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"token": {
					"type": "string"
				},
				"user": {
					"$ref": "#/definitions/domain.Identity"
				}
			}
		},
		"httpapi.userResp": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"user": {
					"$ref": "#/definitions/domain.Identity"
				}
			}
		},
		"httpapi.productReq": {
			"type": "object",
			"properties": {
				"name": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"price": {
					"type": "number"
				},
				"image": {
					"type": "string"
				},
				"category": {
					"type": "string"
				},
				"brand": {
					"type": "string"
				},
				"stock": {
					"type": "integer"
				},
				"featured": {
					"type": "boolean"
				},
				"rating": {
					"type": "number"
				},
				"numReviews": {
					"type": "integer"
				}
			}
		},
		"httpapi.productResp": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"product": {
					"$ref": "#/definitions/domain.Product"
				}
			}
		},
		"httpapi.productsResp": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"products": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/domain.Product"
					}
				}
			}
		},
		"httpapi.productPageResp": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"products": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/domain.Product"
					}
				},
				"page": {
					"type": "integer"
				},
				"pages": {
					"type": "integer"
				},
				"total": {
					"type": "integer"
				}
			}
		},
		"httpapi.orderResp": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"order": {
					"$ref": "#/definitions/domain.Order"
				}
			}
		},
		"httpapi.ordersResp": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"orders": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/domain.Order"
					}
				}
			}
		},
		"httpapi.cartResp": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"items": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/cart.Item"
					}
				},
				"count": {
					"type": "integer"
				},
				"total": {
					"type": "number"
				}
			}
		},
		"httpapi.addCartItemReq": {
			"type": "object",
			"properties": {
				"productId": {
					"type": "string"
				},
				"quantity": {
					"type": "integer"
				}
			}
		},
		"httpapi.setQuantityReq": {
			"type": "object",
			"properties": {
				"quantity": {
					"type": "integer"
				}
			}
		},
		"httpapi.checkoutReq": {
			"type": "object",
			"properties": {
				"shippingAddress": {
					"$ref": "#/definitions/domain.ShippingAddress"
				},
				"paymentMethod": {
					"type": "string"
				},
				"paymentMethodId": {
					"type": "string"
				}
			}
		},
		"httpapi.checkoutResp": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"state": {
					"type": "string"
				},
				"order": {
					"$ref": "#/definitions/domain.Order"
				},
				"replayed": {
					"type": "boolean"
				}
			}
		},
		"httpapi.paymentIntentReq": {
			"type": "object",
			"properties": {
				"amount": {
					"type": "number"
				}
			}
		},
		"httpapi.paymentIntentResp": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"clientSecret": {
					"type": "string"
				}
			}
		},
		"httpapi.healthResp": {
			"type": "object",
			"properties": {
				"status": {
					"type": "string"
				},
				"payments": {
					"type": "string"
				},
				"backends": {
					"type": "object",
					"additionalProperties": {
						"type": "string"
					}
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Storefront API",
	Description:      "Catalog, cart, checkout and orders with primary/fallback storage.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
