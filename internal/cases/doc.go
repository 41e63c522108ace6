// Package cases реализует операции над ветеринарными cases,
// которые нужны шагам discharge workflow: создание case, загрузку,
// обогащение сущностей карточкой пациента, сохранение выписок
// и планирование follow-up писем и звонков.
//
// Service удовлетворяет steps.CaseService, steps.RecordStore и steps.EmailScheduler.
package cases
