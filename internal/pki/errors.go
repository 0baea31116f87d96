package pki

import "errors"

var (
	// ErrKeyGeneration — сбой генерации ключевой пары (энтропия/бэкенд).
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrInvalidSubject — компонент DN не соответствует известному атрибуту.
	ErrInvalidSubject = errors.New("invalid subject DN")

	// ErrSigning — приватный ключ подписывающего CA не читается.
	ErrSigning = errors.New("signing authority key unavailable")

	// ErrAmbiguousSubject — не из чего вывести субъект дочернего сертификата.
	ErrAmbiguousSubject = errors.New("no subject DN and nothing to derive it from")

	// ErrSerialAllocation — не удалось выделить серийный номер (таймаут
	// блокировки, ошибка хранилища). Вызывающий может повторить с backoff.
	ErrSerialAllocation = errors.New("serial number allocation failed")

	// ErrChainUnavailable — построение цепочки CA не реализовано; лучше
	// громкий отказ, чем тихо неверные данные доверия.
	ErrChainUnavailable = errors.New("CA chain construction is not supported")
)
