// Package app собирает компоненты Vetflow для бинарников в cmd/.
//
// Каждый бинарник сам решает, какую инфраструктуру поднимать
// (API — Redis и архив, dispatcher — только БД и RabbitMQ),
// а app.NewDischarge собирает из неё общий discharge workflow.
package app
