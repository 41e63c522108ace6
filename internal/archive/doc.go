// Package archive сохраняет результаты orchestration и выписки в object storage
// через gocloud.dev/blob (S3, локальная файловая система, память для тестов).
package archive
